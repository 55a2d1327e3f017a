package constants

import "time"

// HeaderSeparatorLength is the length of the header separator line.
const HeaderSeparatorLength = 50

// ProgressBarWidth is the number of cells of the terminal progress bar.
const ProgressBarWidth = 40

// SpinnerTickerInterval is the interval between spinner frame updates.
const SpinnerTickerInterval = 80 * time.Millisecond

// TestContextTimeout is the timeout for test contexts.
const TestContextTimeout = 5 * time.Second
