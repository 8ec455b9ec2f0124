package sdk

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/everwill/willvault/schema"
	"github.com/tidwall/gjson"
	"gopkg.in/h2non/gentleman.v2"
)

// Client is the unsigned read client; mutating calls go through SDK which
// signs the request body.
type Client struct {
	SCli *gentleman.Client
}

func New(vaultUrl string) *Client {
	return &Client{
		SCli: gentleman.New().URL(vaultUrl),
	}
}

func (c *Client) GetWill(owner string) (schema.RespWill, error) {
	req := c.SCli.Get()
	req.AddPath(fmt.Sprintf("/will/%s", owner))
	resp, err := req.Send()
	if err != nil {
		return schema.RespWill{}, err
	}
	defer resp.Close()
	if !resp.Ok {
		return schema.RespWill{}, respError(resp.Bytes())
	}
	will := schema.RespWill{}
	err = resp.JSON(&will)
	return will, err
}

func (c *Client) GetWills(state string, limit, offset int) ([]schema.WillRecord, error) {
	req := c.SCli.Get()
	req.AddPath("/wills")
	req.AddQuery("state", state)
	req.AddQuery("limit", fmt.Sprintf("%d", limit))
	req.AddQuery("offset", fmt.Sprintf("%d", offset))
	resp, err := req.Send()
	if err != nil {
		return nil, err
	}
	defer resp.Close()
	if !resp.Ok {
		return nil, respError(resp.Bytes())
	}
	recs := make([]schema.WillRecord, 0)
	err = resp.JSON(&recs)
	return recs, err
}

func (c *Client) GetEvents(owner string, limit, offset int) ([]schema.WillEvent, error) {
	req := c.SCli.Get()
	req.AddPath(fmt.Sprintf("/will/%s/events", owner))
	req.AddQuery("limit", fmt.Sprintf("%d", limit))
	req.AddQuery("offset", fmt.Sprintf("%d", offset))
	resp, err := req.Send()
	if err != nil {
		return nil, err
	}
	defer resp.Close()
	if !resp.Ok {
		return nil, respError(resp.Bytes())
	}
	evs := make([]schema.WillEvent, 0)
	err = resp.JSON(&evs)
	return evs, err
}

func (c *Client) GetFees() (schema.RespFees, error) {
	req := c.SCli.Get()
	req.AddPath("/fees")
	resp, err := req.Send()
	if err != nil {
		return schema.RespFees{}, err
	}
	defer resp.Close()
	if !resp.Ok {
		return schema.RespFees{}, respError(resp.Bytes())
	}
	fees := schema.RespFees{}
	err = resp.JSON(&fees)
	return fees, err
}

func (c *Client) post(path string, reqBody []byte, sig string, result interface{}) error {
	req := c.SCli.Post()
	req.AddPath(path)
	req.SetHeader("Content-Type", "application/json")
	if sig != "" {
		req.SetHeader("Signature", sig)
	}
	req.Body(bytes.NewReader(reqBody))
	resp, err := req.Send()
	if err != nil {
		return err
	}
	defer resp.Close()
	if !resp.Ok {
		return respError(resp.Bytes())
	}
	if result != nil {
		return resp.JSON(result)
	}
	return nil
}

func respError(by []byte) error {
	if errMsg := gjson.GetBytes(by, "error"); errMsg.Exists() {
		return errors.New(errMsg.String())
	}
	return fmt.Errorf("resp failed: %s", string(by))
}
