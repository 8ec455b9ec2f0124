package schema

const (
	WillSnapshotBucket = "will-snapshot-bucket"
	ConstantsBucket    = "constants-bucket"
	StatisticBucket    = "statistic-bucket"
)
