// Package permissions wraps the casbin enforcer used to gate operator
// mutations. Authentication itself is a collaborator: the gateway in front of
// this service resolves the session and forwards the operator identity in a
// header; this package only answers "may this subject do that".
package permissions

import (
	"fmt"
	"log/slog"

	"github.com/casbin/casbin/v2"
	casbinmodel "github.com/casbin/casbin/v2/model"
	mongodbadapter "github.com/casbin/mongodb-adapter/v3"
	"go.mongodb.org/mongo-driver/mongo"
)

// modelText is an RBAC model with explicit deny overriding allow.
const modelText = `
[request_definition]
r = sub, obj, act

[policy_definition]
p = sub, obj, act, eft

[role_definition]
g = _, _

[policy_effect]
e = some(where (p.eft == allow)) && !some(where (p.eft == deny))

[matchers]
m = g(r.sub, p.sub) && r.obj == p.obj && r.act == p.act
`

// Enforcer answers authorization checks against policies stored in MongoDB.
type Enforcer struct {
	enforcer *casbin.Enforcer
	enabled  bool
}

// NewEnforcer creates the enforcer with the MongoDB policy adapter. Policies
// persist automatically and survive restarts.
func NewEnforcer(mongoClient *mongo.Client, dbName string) (*Enforcer, error) {
	adapter, err := mongodbadapter.NewAdapterByDB(mongoClient, &mongodbadapter.AdapterConfig{
		DatabaseName:   dbName,
		CollectionName: "casbin_policies",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create casbin adapter: %w", err)
	}

	m, err := casbinmodel.NewModelFromString(modelText)
	if err != nil {
		return nil, fmt.Errorf("failed to parse casbin model: %w", err)
	}

	enforcer, err := casbin.NewEnforcer(m, adapter)
	if err != nil {
		return nil, fmt.Errorf("failed to create casbin enforcer: %w", err)
	}
	enforcer.EnableAutoSave(true)

	if err := enforcer.LoadPolicy(); err != nil {
		return nil, fmt.Errorf("failed to load casbin policies: %w", err)
	}

	slog.Info("Authorization enforcer initialized", "adapter", "mongodb", "collection", "casbin_policies")
	return &Enforcer{enforcer: enforcer, enabled: true}, nil
}

// NewDisabledEnforcer returns an enforcer that allows everything, for
// development and tests.
func NewDisabledEnforcer() *Enforcer {
	slog.Warn("Authorization enforcement disabled")
	return &Enforcer{enabled: false}
}

// Allow reports whether subject may perform action on resource.
func (e *Enforcer) Allow(subject, resource, action string) (bool, error) {
	if !e.enabled {
		return true, nil
	}
	ok, err := e.enforcer.Enforce(subject, resource, action)
	if err != nil {
		return false, fmt.Errorf("failed to check policy for %s: %w", subject, err)
	}
	return ok, nil
}

// Grant adds an allow policy. Adding an existing policy is a no-op.
func (e *Enforcer) Grant(subject, resource, action string) error {
	if !e.enabled {
		return nil
	}
	if _, err := e.enforcer.AddPolicy(subject, resource, action, "allow"); err != nil {
		return fmt.Errorf("failed to add policy: %w", err)
	}
	return nil
}

// AddRole makes subject a member of role.
func (e *Enforcer) AddRole(subject, role string) error {
	if !e.enabled {
		return nil
	}
	if _, err := e.enforcer.AddGroupingPolicy(subject, role); err != nil {
		return fmt.Errorf("failed to add role assignment: %w", err)
	}
	return nil
}
