package rawdb

import (
	"github.com/everwill/willvault/common"
)

var log = common.NewLog("rawdb")

// KeyValueDB is the snapshot store boundary; bolt for local deployments,
// s3 or mongodb for shared ones.
type KeyValueDB interface {
	Put(bucket, key string, value []byte) (err error)

	Get(bucket, key string) (data []byte, err error)

	GetAllKey(bucket string) (keys []string, err error)

	Delete(bucket, key string) (err error)

	Close() (err error)

	Type() string

	Exist(bucket, key string) bool
}
