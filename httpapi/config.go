package httpapi

// Config defines HTTP channel settings.
type Config struct {
	Addr     string
	BasePath string
	// HubHistory is the number of operation events kept for stream replay.
	HubHistory int
}
