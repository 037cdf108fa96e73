package slack

type Config struct {
	// Username the message is posted as, only used if the webhook allows it.
	Username string `toml:"username" override:"username"`
	// IconEmoji of the posted message, only used if the webhook allows it.
	IconEmoji string `toml:"icon-emoji" override:"icon-emoji"`
}

func NewConfig() Config {
	return Config{}
}

func (c Config) Validate() error {
	return nil
}
