package service

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/totegamma/greenledger/internal/domain"
	"github.com/totegamma/greenledger/policy"
)

func TestAccessDefaultPolicy(t *testing.T) {
	access := NewAccessService(DefaultPolicy(), domain.Config{Admins: []string{"con1admin"}})
	ctx := context.Background()

	assert.NoError(t, access.Check(ctx, "con1admin", domain.CertificateRegistry, domain.ActionVerify, nil))
	assert.NoError(t, access.Check(ctx, "con1admin", domain.ArtPieceRegistry, domain.ActionRestore, nil))
	assert.ErrorIs(t, access.Check(ctx, "con1user", domain.CertificateRegistry, domain.ActionVerify, nil), domain.ErrForbidden)
	assert.ErrorIs(t, access.Check(ctx, "", domain.CertificateRegistry, domain.ActionVerify, nil), domain.ErrForbidden)
	assert.ErrorIs(t, access.Check(ctx, "con1admin", domain.CertificateRegistry, "delete", nil), domain.ErrForbidden)
}

func TestAccessPolicyOnRecord(t *testing.T) {
	// owners may verify their own oak certificates
	ownOak := policy.Expr{
		Operator: "And",
		Args: []policy.Expr{
			{Operator: "Eq", Args: []policy.Expr{
				{Operator: "Load", Args: []policy.Expr{{Const: "record.owner"}}},
				{Operator: "Load", Args: []policy.Expr{{Const: "requester"}}},
			}},
			{Operator: "Eq", Args: []policy.Expr{
				{Operator: "Load", Args: []policy.Expr{{Const: "record.payload.species"}}},
				{Const: "Oak"},
			}},
		},
	}
	doc := policy.PolicyDocument{
		Name: "owner-verify",
		Versions: map[string]policy.Policy{
			policy.Version: {
				Statements: map[string][]policy.Stmt{
					domain.ActionVerify: {{Emit: "allow", Condition: ownOak}},
				},
			},
		},
	}
	access := NewAccessService(doc, domain.Config{})
	ctx := context.Background()

	oak := domain.Record[domain.TreeCertificate]{ID: 1, Owner: "con1owner", Payload: domain.TreeCertificate{Species: "Oak"}}
	pine := domain.Record[domain.TreeCertificate]{ID: 2, Owner: "con1owner", Payload: domain.TreeCertificate{Species: "Pine"}}

	assert.NoError(t, access.Check(ctx, "con1owner", domain.CertificateRegistry, domain.ActionVerify, oak))
	assert.ErrorIs(t, access.Check(ctx, "con1other", domain.CertificateRegistry, domain.ActionVerify, oak), domain.ErrForbidden)
	assert.ErrorIs(t, access.Check(ctx, "con1owner", domain.CertificateRegistry, domain.ActionVerify, pine), domain.ErrForbidden)
	assert.ErrorIs(t, access.Check(ctx, "con1owner", domain.CertificateRegistry, domain.ActionVerify, nil), domain.ErrForbidden)
}

func TestLoadPolicy(t *testing.T) {
	// anyone may verify certificates; restore keeps the admin rule
	doc := `{
  "name": "open-certificates",
  "versions": {
    "2025-10-01": {
      "statements": {
        "verify": [
          {"emit": "allow", "condition": {"op": "Eq", "args": [{"op": "Load", "args": [{"const": "registry"}]}, {"const": "certificates"}]}}
        ],
        "restore": [
          {"emit": "allow", "condition": {"op": "Contains", "args": [{"op": "Load", "args": [{"const": "params.admins"}]}, {"op": "Load", "args": [{"const": "requester"}]}]}}
        ]
      },
      "defaults": {"verify": false, "restore": false}
    }
  }
}`
	path := filepath.Join(t.TempDir(), "policy.json")
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o600))

	loaded, err := LoadPolicy(path)
	require.NoError(t, err)

	access := NewAccessService(loaded, domain.Config{Admins: []string{"con1admin"}})
	ctx := context.Background()

	assert.NoError(t, access.Check(ctx, "con1user", domain.CertificateRegistry, domain.ActionVerify, nil))
	assert.ErrorIs(t, access.Check(ctx, "con1user", domain.ArtPieceRegistry, domain.ActionVerify, nil), domain.ErrForbidden)
	assert.ErrorIs(t, access.Check(ctx, "con1user", domain.CertificateRegistry, domain.ActionRestore, nil), domain.ErrForbidden)
	assert.NoError(t, access.Check(ctx, "con1admin", domain.CertificateRegistry, domain.ActionRestore, nil))

	_, err = LoadPolicy(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)
}
