package adminapi

// Role is one role granted to the admin API caller.
type Role struct {
	RoleName string `json:"role_name"`
	GroupID  string `json:"group_id,omitempty"`
}

// Profile is the admin API caller's own profile.
type Profile struct {
	Roles []Role `json:"roles"`
}

// OwnedGroups returns the ids of every group the caller owns, in profile order, without duplicates.
func (p *Profile) OwnedGroups(ownerRole string) []string {
	var groups []string
	seen := map[string]bool{}
	for _, r := range p.Roles {
		if r.RoleName != ownerRole || r.GroupID == "" || seen[r.GroupID] {
			continue
		}
		seen[r.GroupID] = true
		groups = append(groups, r.GroupID)
	}
	return groups
}

// App is a serverless app under a group.
type App struct {
	ID          string `json:"_id"`
	ClientAppID string `json:"client_app_id"`
	Name        string `json:"name"`
}

// AuthProvider is an authentication provider configured on an app.
type AuthProvider struct {
	ID       string `json:"_id,omitempty"`
	Name     string `json:"name"`
	Type     string `json:"type"`
	Disabled bool   `json:"disabled"`
}

// APIKey is a freshly minted app API key. Key is only returned on creation.
type APIKey struct {
	ID   string `json:"_id"`
	Name string `json:"name"`
	Key  string `json:"key"`
}

// Function is a remote function record as returned by the list call.
type Function struct {
	ID   string `json:"_id"`
	Name string `json:"name"`
}

// NewFunction is the create-function payload.
type NewFunction struct {
	Name        string `json:"name"`
	Source      string `json:"source"`
	RunAsSystem bool   `json:"run_as_system"`
}

// Endpoint is the create-endpoint payload of an HTTPS endpoint bound to a function.
type Endpoint struct {
	Route               string `json:"route"`
	FunctionName        string `json:"function_name"`
	FunctionID          string `json:"function_id"`
	HTTPMethod          string `json:"http_method"`
	ValidationMethod    string `json:"validation_method"`
	SecretID            string `json:"secret_id"`
	SecretName          string `json:"secret_name"`
	CreateUserOnAuth    bool   `json:"create_user_on_auth"`
	FetchCustomUserData bool   `json:"fetch_custom_user_data"`
	RespondResult       bool   `json:"respond_result"`
	Disabled            bool   `json:"disabled"`
}

// Location describes where an app is deployed.
type Location struct {
	DeploymentModel string `json:"deployment_model"`
	Location        string `json:"location"`
	Hostname        string `json:"hostname"`
}

type loginRequest struct {
	Username string `json:"username"`
	APIKey   string `json:"apiKey"`
}

type loginResponse struct {
	AccessToken string `json:"access_token"`
}

type createAPIKeyRequest struct {
	Name string `json:"name"`
}
