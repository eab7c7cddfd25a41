package service

import (
	"context"
	"encoding/json"
	"os"

	"github.com/pkg/errors"
	"go.opentelemetry.io/otel/attribute"

	"github.com/totegamma/greenledger/internal/domain"
	"github.com/totegamma/greenledger/policy"
)

// AccessService decides whether a requester may run a privileged registry action.
type AccessService struct {
	doc    policy.PolicyDocument
	admins []any
}

// DefaultPolicy lets configured admins verify records and restore registries.
func DefaultPolicy() policy.PolicyDocument {
	isAdmin := policy.Expr{
		Operator: "Contains",
		Args: []policy.Expr{
			{Operator: "Load", Args: []policy.Expr{{Const: "params.admins"}}},
			{Operator: "Load", Args: []policy.Expr{{Const: "requester"}}},
		},
	}
	return policy.PolicyDocument{
		Name:        "greenledger.registry",
		Description: "admins may verify and restore",
		Versions: map[string]policy.Policy{
			policy.Version: {
				Statements: map[string][]policy.Stmt{
					domain.ActionVerify:  {{Emit: "allow", Condition: isAdmin}},
					domain.ActionRestore: {{Emit: "allow", Condition: isAdmin}},
				},
				Defaults: map[string]bool{
					domain.ActionVerify:  false,
					domain.ActionRestore: false,
				},
			},
		},
	}
}

// LoadPolicy reads a JSON policy document.
func LoadPolicy(path string) (policy.PolicyDocument, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return policy.PolicyDocument{}, errors.Wrapf(err, "read policy %s", path)
	}
	var doc policy.PolicyDocument
	if err := json.Unmarshal(raw, &doc); err != nil {
		return policy.PolicyDocument{}, errors.Wrapf(err, "parse policy %s", path)
	}
	return doc, nil
}

func NewAccessService(doc policy.PolicyDocument, config domain.Config) *AccessService {
	admins := make([]any, 0, len(config.Admins))
	for _, admin := range config.Admins {
		admins = append(admins, admin)
	}
	return &AccessService{doc: doc, admins: admins}
}

// Check returns domain.ErrForbidden unless the policy allows action. record is
// the record the action targets, reachable as "record.*" from the policy; it
// is nil for registry wide actions and for unknown ids.
func (s *AccessService) Check(ctx context.Context, requester string, registry string, action string, record any) error {
	_, span := tracer.Start(ctx, "Access.Service.Check")
	defer span.End()
	span.SetAttributes(
		attribute.String("requester", requester),
		attribute.String("registry", registry),
		attribute.String("action", action),
	)

	allowed, err := policy.Allowed(s.doc, policy.RequestContext{
		Requester: requester,
		Registry:  registry,
		Action:    action,
		Record:    record,
		Params: map[string]any{
			"admins": s.admins,
		},
	}, action)
	if err != nil {
		span.RecordError(err)
		return errors.Wrap(err, "policy evaluation")
	}
	if !allowed {
		return domain.ErrForbidden
	}
	return nil
}
