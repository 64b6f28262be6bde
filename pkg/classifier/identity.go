package classifier

import (
	"strings"

	"github.com/mosajjal/iamwatch/pkg/models"
)

// arn:partition:service:region:account:resource
const arnSections = 6

// actorResource reduces an ARN to its resource part, e.g. "user/alice" or
// "assumed-role/Admin/session". Strings that are not ARNs pass through.
func actorResource(arn string) string {
	parts := strings.SplitN(arn, ":", arnSections)
	if len(parts) != arnSections || parts[0] != "arn" || parts[5] == "" {
		return arn
	}
	return parts[5]
}

// accountID prefers the explicit account and falls back to the ARN
func accountID(id *models.UserIdentity) string {
	if id.AccountID != "" {
		return id.AccountID
	}
	parts := strings.SplitN(id.ARN, ":", arnSections)
	if len(parts) == arnSections && parts[0] == "arn" {
		return parts[4]
	}
	return ""
}

// principalLabel drops the unique-id part of "AROAEXAMPLE:session" style
// principals, keeping the session or user name.
func principalLabel(principalID string) string {
	if i := strings.LastIndex(principalID, ":"); i >= 0 && i < len(principalID)-1 {
		return principalID[i+1:]
	}
	return principalID
}
