package willvault

import (
	"github.com/everwill/willvault/common"
)

var log = common.NewLog("willvault")
