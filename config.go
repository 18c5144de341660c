package ledgerxgo

type Config struct {
	Server struct {
		Addr string `yaml:"addr"`
	} `yaml:"server"`
	Database struct {
		ConnectionString string `yaml:"conn_str"`
		// SeedAccounts maps account id to starting balance; consumed by
		// cmd/seeder to provision demo accounts.
		SeedAccounts map[string]string `yaml:"seed_accounts"`
	} `yaml:"database"`
	Ledger struct {
		SeedBalance string `yaml:"seed_balance"`
	} `yaml:"ledger"`
	Kafka struct {
		Brokers []string `yaml:"brokers"`
		Topic   string   `yaml:"topic"`
	} `yaml:"kafka"`
	Limits struct {
		Transfer int64 `yaml:"transfer"`
		Reads    int64 `yaml:"reads"`
	} `yaml:"limits"`
}
