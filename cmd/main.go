package main

import (
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/everwill/willvault"
	"github.com/urfave/cli/v2"
)

func main() {
	app := &cli.App{
		Name: "willvault",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "db_dir", Value: "./data/bolt", Usage: "bolt db dir path", EnvVars: []string{"DB_DIR"}},
			&cli.StringFlag{Name: "mysql", Value: "root@tcp(127.0.0.1:3306)/willvault?charset=utf8mb4&parseTime=True&loc=Local", Usage: "mysql dsn", EnvVars: []string{"MYSQL"}},
			&cli.StringFlag{Name: "sqlite_dir", Value: "./data/sqlite", Usage: "sqlite db dir path", EnvVars: []string{"SQLITE_DIR"}},
			&cli.BoolFlag{Name: "use_sqlite", Value: false, Usage: "use sqlite instead of mysql", EnvVars: []string{"USE_SQLITE"}},
			&cli.StringFlag{Name: "key_path", Value: "./data/governor-keyfile", Usage: "governance key path", EnvVars: []string{"KEY_PATH"}},
			&cli.BoolFlag{Name: "no_auth", Value: false, Usage: "skip request signature verification", EnvVars: []string{"NO_AUTH"}},
			&cli.BoolFlag{Name: "s3_flag", Value: false, Usage: "run with s3 store", EnvVars: []string{"S3_FLAG"}},
			&cli.StringFlag{Name: "s3_acc_key", Value: "", Usage: "s3 access key", EnvVars: []string{"S3_ACC_KEY"}},
			&cli.StringFlag{Name: "s3_secret_key", Value: "", Usage: "s3 secret key", EnvVars: []string{"S3_SECRET_KEY"}},
			&cli.StringFlag{Name: "s3_prefix", Value: "willvault", Usage: "s3 bucket name prefix", EnvVars: []string{"S3_PREFIX"}},
			&cli.StringFlag{Name: "s3_region", Value: "ap-northeast-1", Usage: "s3 bucket region", EnvVars: []string{"S3_REGION"}},
			&cli.StringFlag{Name: "s3_endpoint", Value: "", Usage: "s3 endpoint", EnvVars: []string{"S3_ENDPOINT"}},
			&cli.BoolFlag{Name: "mongo_flag", Value: false, Usage: "run with mongodb store", EnvVars: []string{"MONGO_FLAG"}},
			&cli.StringFlag{Name: "mongo_uri", Value: "mongodb://localhost:27017", Usage: "mongodb uri", EnvVars: []string{"MONGO_URI"}},
			&cli.BoolFlag{Name: "kafka_flag", Value: false, Usage: "publish events to kafka", EnvVars: []string{"KAFKA_FLAG"}},
			&cli.StringFlag{Name: "kafka_uri", Value: "127.0.0.1:9092", Usage: "kafka broker uri", EnvVars: []string{"KAFKA_URI"}},

			&cli.StringFlag{Name: "port", Value: ":8080", EnvVars: []string{"PORT"}},
		},
		Action: run,
	}

	err := app.Run(os.Args)
	if err != nil {
		log.Fatal(err)
	}
}

func run(c *cli.Context) error {
	signals := make(chan os.Signal, 1)
	signal.Notify(signals, os.Interrupt, syscall.SIGTERM)

	s := willvault.New(
		c.String("db_dir"), c.String("mysql"), c.String("sqlite_dir"), c.Bool("use_sqlite"),
		c.String("key_path"), c.Bool("no_auth"),
		c.Bool("s3_flag"), c.String("s3_acc_key"), c.String("s3_secret_key"), c.String("s3_prefix"), c.String("s3_region"), c.String("s3_endpoint"),
		c.Bool("mongo_flag"), c.String("mongo_uri"),
		c.Bool("kafka_flag"), c.String("kafka_uri"),
	)
	s.Run(c.String("port"))

	<-signals
	s.Close()

	return nil
}
