package handler

import (
	"strings"

	dErrors "warden/pkg/domain-errors"
)

type addDomainRequest struct {
	Domain    string `json:"domain"`
	IsPrimary bool   `json:"is_primary"`
}

func (r addDomainRequest) Validate() error {
	if strings.TrimSpace(r.Domain) == "" {
		return dErrors.New(dErrors.CodeBadRequest, "domain is required")
	}
	return nil
}
