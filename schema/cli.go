package schema

type Config struct {
	Mysql     string `yaml:"mysql"`
	SqliteDir string `yaml:"sqliteDir"`
	UseSqlite bool   `yaml:"useSqlite"`
	Port      string `yaml:"port"`
	NoAuth    bool   `yaml:"noAuth"`

	GovKeyPath string `yaml:"govKeyPath"`

	BoltDir   string    `yaml:"boltDir"`
	S3KV      S3KV      `yaml:"s3KV"`
	MongoDBKV MongoDBKV `yaml:"mongoDBKV"`

	Kafka Kafka `yaml:"kafka"`
}

type S3KV struct {
	UseS3     bool   `yaml:"useS3"`
	AccKey    string `yaml:"accKey"`
	SecretKey string `yaml:"secretKey"`
	Prefix    string `yaml:"prefix"`
	Region    string `yaml:"region"`
	Endpoint  string `yaml:"endpoint"`
}

type MongoDBKV struct {
	UseMongoDB bool   `yaml:"useMongoDB"`
	Uri        string `yaml:"uri"`
}

type Kafka struct {
	Start bool   `yaml:"start"`
	Uri   string `yaml:"uri"`
}
