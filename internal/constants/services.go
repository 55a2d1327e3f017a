package constants

// ServiceType identifies a kind of deployable service.
type ServiceType string

const (
	// ServiceNyseNsdqHalts is the NYSE/NASDAQ trading halts alert service.
	ServiceNyseNsdqHalts ServiceType = "nyse-nsdq-halts"
)

// ServiceState is the lifecycle state of a service document.
type ServiceState string

const (
	// ServiceStateFailed marks a document whose last deploy did not complete.
	ServiceStateFailed ServiceState = "failed"
	// ServiceStateStopped marks a deployed but inactive service.
	ServiceStateStopped ServiceState = "stopped"
	// ServiceStateActive marks a deployed and running service.
	ServiceStateActive ServiceState = "active"
)

// Halts service field bounds.
const (
	HaltsIntervalMin = 1
	HaltsIntervalMax = 1000
	HaltsDepthMin    = 30
	HaltsDepthMax    = 10000
)

// SQL fragment paths used by service deploy steps.
const (
	SendTelegramMessageSQL = "send-telegram-message.sql"
	DeploySQLFileName      = "deploy.sql"

	// FormatterFileName is the plv8 body turning one halt into bot API form data.
	// The deployed job and the test message both render it.
	FormatterFileName = "format.js"
)

// TelegramAPIURL is the base URL of the chat bot API.
const TelegramAPIURL = "https://api.telegram.org"

// HaltsFeedURL is the RSS feed of current trading halts polled by deployed halts services.
const HaltsFeedURL = "https://www.nasdaqtrader.com/rss.aspx?feed=tradehalts"
