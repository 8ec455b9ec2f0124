package willvault

import (
	"net/http/httptest"
	"testing"

	ethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/everFinance/goether"
	"github.com/everwill/willvault/schema"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

const testPriKey = "4c3f9a1e5b234ce8f1ab58d82f849c0f70a4d5ceaf2b6e2d9a6c58b1f897ef0a"

func testContext(t *testing.T, sig string) *gin.Context {
	t.Helper()
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest("POST", "/will", nil)
	if sig != "" {
		c.Request.Header.Set("Signature", sig)
	}
	return c
}

func TestVerifyCaller(t *testing.T) {
	signer, err := goether.NewSigner(testPriKey)
	assert.NoError(t, err)
	body := []byte(`{"caller":"0x1"}`)
	sig, err := signer.SignMsg(body)
	assert.NoError(t, err)

	s := &WillVault{}
	c := testContext(t, hexutil.Encode(sig))
	assert.NoError(t, s.verifyCaller(c, signer.Address, body))

	// declared caller does not match the recovered signer
	assert.ErrorIs(t, s.verifyCaller(c, strangerAddr, body), schema.ErrBadSignature)

	// signature over different content
	assert.ErrorIs(t, s.verifyCaller(c, signer.Address, []byte(`tampered`)), schema.ErrBadSignature)

	c = testContext(t, "")
	assert.ErrorIs(t, s.verifyCaller(c, signer.Address, body), schema.ErrBadSignature)

	c = testContext(t, "0x1234")
	assert.ErrorIs(t, s.verifyCaller(c, signer.Address, body), schema.ErrBadSignature)

	noAuth := &WillVault{NoAuth: true}
	c = testContext(t, "")
	assert.NoError(t, noAuth.verifyCaller(c, strangerAddr, body))
}

func TestParseAmount(t *testing.T) {
	v, err := parseAmount("")
	assert.NoError(t, err)
	assert.Equal(t, amt(0), v)

	v, err = parseAmount("1000000000000000000")
	assert.NoError(t, err)
	assert.Equal(t, "1000000000000000000", v.String())

	_, err = parseAmount("-1")
	assert.ErrorIs(t, err, schema.ErrBadAmount)
	_, err = parseAmount("1.5")
	assert.ErrorIs(t, err, schema.ErrBadAmount)
	_, err = parseAmount("abc")
	assert.ErrorIs(t, err, schema.ErrBadAmount)
}

func TestParseCreateParams(t *testing.T) {
	req := schema.CreateWillReq{
		Caller:      ownerAddr.Hex(),
		Heirs:       []string{heirA.Hex(), heirB.Hex()},
		Percentages: []int{60, 40},
		Interval:    3600,
		Payment:     "100",
		Tokens:      []schema.FungibleSpec{{Token: tokenAddr.Hex(), Amount: "50"}},
		NFTs:        []schema.NFTGrant{{Token: nftAddr.Hex(), TokenId: "7", Heir: heirA.Hex()}},
	}
	params, err := parseCreateParams(req)
	assert.NoError(t, err)
	assert.Equal(t, []ethcommon.Address{heirA, heirB}, params.Heirs)
	assert.Equal(t, amt(100), params.Payment)
	assert.Len(t, params.Tokens, 1)
	assert.Equal(t, amt(50), params.Tokens[0].Amount)
	assert.Len(t, params.NFTs, 1)
	assert.Equal(t, amt(7), params.NFTs[0].TokenId)
	assert.Equal(t, heirA, params.NFTs[0].Heir)

	req.Heirs = []string{"not-an-address"}
	_, err = parseCreateParams(req)
	assert.ErrorIs(t, err, schema.ErrBadAddress)

	req.Heirs = []string{heirA.Hex()}
	req.Tokens = []schema.FungibleSpec{{Token: tokenAddr.Hex(), Amount: "0"}}
	_, err = parseCreateParams(req)
	assert.ErrorIs(t, err, schema.ErrBadAmount)
}
