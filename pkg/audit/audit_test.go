package audit

import (
	"errors"
	"testing"
)

func TestParse(t *testing.T) {
	data := []byte(`{"Records":[
		{"eventSource":"iam.amazonaws.com","eventName":"CreateUser","eventTime":"2024-01-02T03:04:05Z",
		 "userIdentity":{"arn":"arn:aws:iam::123456789012:user/alice","accountId":"123456789012","principalId":"AIDAEXAMPLE"},
		 "requestParameters":{"userName":"bob"}},
		{"eventSource":"s3.amazonaws.com","eventName":"GetObject"}
	]}`)

	records, recordErrs, err := Parse(data)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if len(recordErrs) != 0 {
		t.Errorf("Expected no record errors, got %v", recordErrs)
	}
	if len(records) != 2 {
		t.Fatalf("Expected 2 records, got %d", len(records))
	}
	if records[0].EventName != "CreateUser" || records[1].EventName != "GetObject" {
		t.Errorf("Expected records in file order, got %q, %q", records[0].EventName, records[1].EventName)
	}
	if records[0].UserIdentity == nil || records[0].UserIdentity.AccountID != "123456789012" {
		t.Errorf("Expected user identity to be decoded, got %+v", records[0].UserIdentity)
	}
	if string(records[0].RequestParameters) != `{"userName":"bob"}` {
		t.Errorf("Expected raw request parameters, got %s", records[0].RequestParameters)
	}
	if records[1].UserIdentity != nil {
		t.Error("Expected absent user identity to stay nil")
	}
}

func TestParseEmptyRecords(t *testing.T) {
	records, _, err := Parse([]byte(`{"Records":[]}`))
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if len(records) != 0 {
		t.Errorf("Expected 0 records, got %d", len(records))
	}
}

func TestParseSkipsUndecodableRecord(t *testing.T) {
	records, recordErrs, err := Parse([]byte(`{"Records":[{"eventName":42},{"eventName":"CreateUser"}]}`))
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if len(records) != 1 || records[0].EventName != "CreateUser" {
		t.Errorf("Expected only the valid record, got %+v", records)
	}
	if len(recordErrs) != 1 {
		t.Errorf("Expected 1 record error, got %d", len(recordErrs))
	}
}

func TestParseMalformed(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"empty", ""},
		{"array", `[{"eventName":"CreateUser"}]`},
		{"no records key", `{"records":[]}`},
		{"null records", `{"Records":null}`},
		{"records not array", `{"Records":{}}`},
		{"truncated", `{"Records":[{"eventName":"CreateUser"}`},
		{"not json", "plain text"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := Parse([]byte(tt.data))
			if !errors.Is(err, ErrMalformedBatch) {
				t.Errorf("Expected ErrMalformedBatch, got %v", err)
			}
		})
	}
}
