package policy

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	"github.com/totegamma/concrnt-community/internal/domain"
)

const (
	Version2024 = "2024-01-01"

	// ActionReplaceCouncil is evaluated before a community council is replaced.
	ActionReplaceCouncil = "community.council.replace"
)

// OwnerOnly allows only the recorded owner to replace the council.
var OwnerOnly = PolicyDocument{
	Name:        "community.owner-only",
	Description: "only the community owner may replace its council",
	Versions: map[string]Policy{
		Version2024: {
			Statements: map[string][]Stmt{
				ActionReplaceCouncil: {
					{
						Emit: "allow",
						Condition: Expr{
							Operator: "Eq",
							Args: []Expr{
								{Operator: "Load", Args: []Expr{{Const: "requester"}}},
								{Operator: "Load", Args: []Expr{{Const: "this.owner"}}},
							},
						},
					},
				},
			},
			Defaults: map[string]bool{
				ActionReplaceCouncil: false,
			},
		},
	},
}

// CouncilMembers additionally allows any current council member.
var CouncilMembers = PolicyDocument{
	Name:        "community.council-members",
	Description: "the owner or any current council member may replace the council",
	Versions: map[string]Policy{
		Version2024: {
			Statements: map[string][]Stmt{
				ActionReplaceCouncil: {
					OwnerOnly.Versions[Version2024].Statements[ActionReplaceCouncil][0],
					{
						Emit: "allow",
						Condition: Expr{
							Operator: "Contains",
							Args: []Expr{
								{Operator: "Load", Args: []Expr{{Const: "this.councils"}}},
								{Operator: "Load", Args: []Expr{{Const: "requester"}}},
							},
						},
					},
				},
			},
			Defaults: map[string]bool{
				ActionReplaceCouncil: false,
			},
		},
	},
}

// Authorizer evaluates a policy document for council replacement.
type Authorizer struct {
	doc    PolicyDocument
	action string
}

func NewAuthorizer(doc PolicyDocument) *Authorizer {
	return &Authorizer{
		doc:    doc,
		action: ActionReplaceCouncil,
	}
}

// Load reads a json policy document from path.
func Load(path string) (PolicyDocument, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return PolicyDocument{}, err
	}

	var doc PolicyDocument
	if err := json.Unmarshal(raw, &doc); err != nil {
		return PolicyDocument{}, fmt.Errorf("invalid policy document %s: %v", path, err)
	}

	if _, ok := doc.Versions[Version2024]; !ok {
		return PolicyDocument{}, fmt.Errorf("policy document %s has no %s version", path, Version2024)
	}

	return doc, nil
}

func (a *Authorizer) IsAuthorized(record domain.Community, caller domain.Identity) bool {
	conclusion, trace, err := EvaluatePolicy(a.doc, requestContext(record, caller), a.action)
	if err != nil {
		slog.Warn("policy evaluation failed", slog.String("policy", a.doc.Name), slog.String("error", err.Error()))
		return false
	}

	defaultAllow := a.doc.Versions[Version2024].Defaults[a.action]
	allowed := Summarize([]Conclusion{conclusion}, defaultAllow)
	if !allowed {
		slog.Debug(
			"policy denied",
			slog.String("policy", a.doc.Name),
			slog.String("caller", string(caller)),
			slog.Uint64("community", record.ID),
			slog.Any("trace", trace),
		)
	}
	return allowed
}

func requestContext(record domain.Community, caller domain.Identity) RequestContext {
	councils := make([]any, 0, len(record.Councils))
	for _, member := range record.Councils {
		councils = append(councils, string(member))
	}

	return RequestContext{
		Requester: string(caller),
		This: map[string]any{
			"id":       record.ID,
			"name":     record.Name,
			"address":  record.Address,
			"owner":    string(record.Owner),
			"councils": councils,
		},
	}
}
