package domain

type Config struct {
	FQDN       string `yaml:"fqdn"`
	PrivateKey string `yaml:"privatekey"`
	Layer      string `yaml:"layer"`
	CSID       string `yaml:"csid"`
}
