// Package signing with the HMAC signatures that grant access to private and writable resources
package signing

import (
	"crypto/hmac"
	"crypto/sha1"
	"encoding/base64"
	"fmt"

	"github.com/wostzone/bbtclient-go/api"
)

// Signer signs access requests with the account's secret key
type Signer struct {
	keyID     string
	secretKey []byte
}

// Sign returns the signature "keyID:base64(HMAC-SHA1(secretKey, toSign))"
func (signer *Signer) Sign(toSign string) string {
	mac := hmac.New(sha1.New, signer.secretKey)
	mac.Write([]byte(toSign))
	return signer.keyID + ":" + base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

// KeyID returns the access key the signatures are issued for
func (signer *Signer) KeyID() string {
	return signer.keyID
}

// StringToSign returns the text to sign for an access request:
//  sid:channel.resource:ttl=T:read=R:write=W
// where channel is the device, or device.service when a service is given.
// An empty resource is signed as the wildcard.
func StringToSign(req *api.AuthRequest) string {
	channel := req.Device
	if req.Service != "" {
		channel = req.Device + "." + req.Service
	}
	resource := req.Resource
	if resource == "" {
		resource = api.Wildcard
	}
	return fmt.Sprintf("%s:%s.%s:ttl=%d:read=%t:write=%t",
		req.Sid, channel, resource, req.TTL, req.Read, req.Write)
}

// NewSigner creates a signer for the given account keys
//  keyID is the access key
//  secretKey is the secret key used for the HMAC
func NewSigner(keyID string, secretKey string) *Signer {
	return &Signer{keyID: keyID, secretKey: []byte(secretKey)}
}
