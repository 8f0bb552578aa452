package models

import "strings"

// Redis layout shared by the processor (writer) and the gateway (reader).
const (
	snapshotKeyPrefix = "quote:"
	channelPrefix     = "quotes."
)

func SnapshotKey(company string) string { return snapshotKeyPrefix + company }
func Channel(company string) string     { return channelPrefix + company }

// CompanyFromChannel reverses Channel. ok is false for foreign channels.
func CompanyFromChannel(channel string) (company string, ok bool) {
	company = strings.TrimPrefix(channel, channelPrefix)
	if company == channel || company == "" {
		return "", false
	}
	return company, true
}
