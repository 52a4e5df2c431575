package skport

import (
	"crypto/hmac"
	"crypto/md5"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
)

const (
	platform = "3"
	vName    = "1.0.0"
)

// signHeader is hashed as part of the v2 signature. Field order matters.
type signHeader struct {
	Platform  string `json:"platform"`
	Timestamp string `json:"timestamp"`
	DID       string `json:"dId"`
	VName     string `json:"vName"`
}

// SignV1 signs read requests: md5("timestamp=<ts>&cred=<cred>").
func SignV1(timestamp, cred string) string {
	sum := md5.Sum([]byte("timestamp=" + timestamp + "&cred=" + cred))
	return hex.EncodeToString(sum[:])
}

// SignV2 signs attendance claims: md5(hex(hmac_sha256(salt, path+ts+header))).
func SignV2(salt, path, timestamp string) string {
	header, _ := json.Marshal(signHeader{Platform: platform, Timestamp: timestamp, VName: vName})
	mac := hmac.New(sha256.New, []byte(salt))
	mac.Write([]byte(path + timestamp + string(header)))
	sum := md5.Sum([]byte(hex.EncodeToString(mac.Sum(nil))))
	return hex.EncodeToString(sum[:])
}
