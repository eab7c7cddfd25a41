package domain

type Config struct {
	FQDN       string   `yaml:"fqdn"`
	PrivateKey string   `yaml:"privatekey"`
	Admins     []string `yaml:"admins"`
	CSID       string   `yaml:"csid"`
}
