package models

import "github.com/google/uuid"

// ProductID 由商品URL派生稳定ID (UUIDv5)
// 同一URL多次运行得到相同ID
func ProductID(sourceURL string) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(sourceURL)).String()
}
