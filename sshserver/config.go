package sshserver

// Config defines SSH command channel settings.
type Config struct {
	Addr               string
	HostKeyPath        string
	AuthorizedKeysPath string
	Prompt             string
}
