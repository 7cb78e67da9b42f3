package alb

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	elbv2 "github.com/aws/aws-sdk-go-v2/service/elasticloadbalancingv2"
	"github.com/aws/aws-sdk-go-v2/service/elasticloadbalancingv2/types"

	"github.com/tbourn/go-domain-mapper/internal/domain"
)

type fakeELB struct {
	rule     types.Rule
	pages    [][]types.Rule
	modified *elbv2.ModifyRuleInput
	descErr  error
}

func (f *fakeELB) DescribeRules(_ context.Context, in *elbv2.DescribeRulesInput, _ ...func(*elbv2.Options)) (*elbv2.DescribeRulesOutput, error) {
	if f.descErr != nil {
		return nil, f.descErr
	}
	if in.ListenerArn != nil {
		page := 0
		if in.Marker != nil {
			page = 1
		}
		out := &elbv2.DescribeRulesOutput{Rules: f.pages[page]}
		if page+1 < len(f.pages) {
			out.NextMarker = aws.String("next")
		}
		return out, nil
	}
	return &elbv2.DescribeRulesOutput{Rules: []types.Rule{f.rule}}, nil
}

func (f *fakeELB) ModifyRule(_ context.Context, in *elbv2.ModifyRuleInput, _ ...func(*elbv2.Options)) (*elbv2.ModifyRuleOutput, error) {
	f.modified = in
	// Reflect the change so a replay sees it.
	f.rule.Conditions = in.Conditions
	return &elbv2.ModifyRuleOutput{}, nil
}

func ruleWithHosts(hosts ...string) types.Rule {
	return types.Rule{
		RuleArn: aws.String("arn:rule"),
		Conditions: []types.RuleCondition{
			{
				Field:             aws.String("path-pattern"),
				Values:            []string{"/app/*"},
				PathPatternConfig: &types.PathPatternConditionConfig{Values: []string{"/app/*"}},
			},
			{
				Field:            aws.String("host-header"),
				Values:           hosts,
				HostHeaderConfig: &types.HostHeaderConditionConfig{Values: hosts},
			},
		},
	}
}

func TestAddHost_AppendsSortedAndKeepsOtherConditions(t *testing.T) {
	f := &fakeELB{rule: ruleWithHosts("z.example.com", "b.example.com")}
	r := NewWithClient(f, "arn:listener", "arn:rule")

	res, err := r.AddHost(context.Background(), "HTTPS://Portal.Example.com/")
	if err != nil {
		t.Fatalf("AddHost: %v", err)
	}
	if res.Type != domain.ResultSuccess || res.Status != domain.StatusUpdated {
		t.Fatalf("unexpected result %+v", res)
	}
	if f.modified == nil {
		t.Fatal("ModifyRule not called")
	}
	conds := f.modified.Conditions
	if len(conds) != 2 {
		t.Fatalf("want 2 conditions, got %d", len(conds))
	}
	if aws.ToString(conds[0].Field) != "path-pattern" || conds[0].Values != nil {
		t.Fatalf("path-pattern condition not preserved cleanly: %+v", conds[0])
	}
	want := []string{"b.example.com", "portal.example.com", "z.example.com"}
	if got := conds[1].HostHeaderConfig.Values; !reflect.DeepEqual(got, want) {
		t.Fatalf("hosts = %v, want %v", got, want)
	}
}

func TestAddHost_ReplayIsNoChanges(t *testing.T) {
	f := &fakeELB{rule: ruleWithHosts("a.example.com")}
	r := NewWithClient(f, "", "arn:rule")

	if _, err := r.AddHost(context.Background(), "portal.example.com"); err != nil {
		t.Fatal(err)
	}
	f.modified = nil
	res, err := r.AddHost(context.Background(), "portal.example.com")
	if err != nil {
		t.Fatal(err)
	}
	if res.Status != domain.StatusNoChanges || !res.OK() {
		t.Fatalf("want success/no_changes, got %+v", res)
	}
	if f.modified != nil {
		t.Fatal("ModifyRule called on replay")
	}
}

func TestAddHost_Errors(t *testing.T) {
	r := NewWithClient(&fakeELB{}, "", "")
	if _, err := r.AddHost(context.Background(), "x.com"); !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("want ErrNotConfigured, got %v", err)
	}

	boom := errors.New("throttled")
	r = NewWithClient(&fakeELB{descErr: boom}, "", "arn:rule")
	if _, err := r.AddHost(context.Background(), "x.com"); !errors.Is(err, boom) {
		t.Fatalf("want wrapped describe error, got %v", err)
	}
}

func TestNextPriority(t *testing.T) {
	f := &fakeELB{pages: [][]types.Rule{
		{{Priority: aws.String("default")}, {Priority: aws.String("4")}},
		{{Priority: aws.String("12")}, {Priority: aws.String("7")}},
	}}
	r := NewWithClient(f, "arn:listener", "")
	got, err := r.NextPriority(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if got != 13 {
		t.Fatalf("NextPriority = %d, want 13", got)
	}

	f = &fakeELB{pages: [][]types.Rule{{{Priority: aws.String("default")}}}}
	r = NewWithClient(f, "arn:listener", "")
	if got, _ := r.NextPriority(context.Background()); got != 2 {
		t.Fatalf("NextPriority with only default = %d, want 2", got)
	}
}

func TestHostValues(t *testing.T) {
	f := &fakeELB{rule: ruleWithHosts("a.com", "b.com")}
	r := NewWithClient(f, "", "arn:rule")
	got, err := r.HostValues(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(got, []string{"a.com", "b.com"}) {
		t.Fatalf("HostValues = %v", got)
	}
}
