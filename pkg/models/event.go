package models

import "encoding/json"

// RawAuditRecord is one entry of a CloudTrail log archive
type RawAuditRecord struct {
	EventSource       string          `json:"eventSource"`
	EventName         string          `json:"eventName"`
	EventTime         string          `json:"eventTime"`
	AWSRegion         string          `json:"awsRegion,omitempty"`
	SourceIPAddress   string          `json:"sourceIPAddress,omitempty"`
	UserIdentity      *UserIdentity   `json:"userIdentity"`
	RequestParameters json.RawMessage `json:"requestParameters"`
}

// UserIdentity is the actor of an audit record
type UserIdentity struct {
	Type        string `json:"type,omitempty"`
	ARN         string `json:"arn"`
	AccountID   string `json:"accountId"`
	PrincipalID string `json:"principalId"`
}

// ObjectRef points at an archive in object storage
type ObjectRef struct {
	Bucket string
	Key    string
}

// Object is a fetched and decompressed archive
type Object struct {
	ContentType string
	Body        []byte
}
