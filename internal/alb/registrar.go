// Package alb keeps an Application Load Balancer listener rule's host-header
// condition in step with onboarded domains.
package alb

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	elbv2 "github.com/aws/aws-sdk-go-v2/service/elasticloadbalancingv2"
	"github.com/aws/aws-sdk-go-v2/service/elasticloadbalancingv2/types"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/tbourn/go-domain-mapper/internal/domain"
	"github.com/tbourn/go-domain-mapper/internal/domainname"
)

const hostHeaderField = "host-header"

var (
	// ErrRuleNotFound means DescribeRules returned no rule for the ARN.
	ErrRuleNotFound = errors.New("listener rule not found")
	// ErrNotConfigured means the rule ARN is missing.
	ErrNotConfigured = errors.New("ALB_RULE_ARN is not set")
)

// ELB is the subset of the ELBv2 client the registrar calls.
type ELB interface {
	DescribeRules(ctx context.Context, in *elbv2.DescribeRulesInput, optFns ...func(*elbv2.Options)) (*elbv2.DescribeRulesOutput, error)
	ModifyRule(ctx context.Context, in *elbv2.ModifyRuleInput, optFns ...func(*elbv2.Options)) (*elbv2.ModifyRuleOutput, error)
}

// Registrar adds domains to one listener rule.
type Registrar struct {
	ELB         ELB
	RuleARN     string
	ListenerARN string
	Log         zerolog.Logger
}

// New builds a Registrar from the default AWS credential chain.
func New(ctx context.Context, region, listenerARN, ruleARN string) (*Registrar, error) {
	opts := []func(*awsconfig.LoadOptions) error{}
	if region != "" {
		opts = append(opts, awsconfig.WithRegion(region))
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return NewWithClient(elbv2.NewFromConfig(cfg), listenerARN, ruleARN), nil
}

// NewWithClient wraps an existing ELB client.
func NewWithClient(c ELB, listenerARN, ruleARN string) *Registrar {
	return &Registrar{ELB: c, RuleARN: ruleARN, ListenerARN: listenerARN, Log: log.With().Str("component", "alb").Logger()}
}

// HostValues returns the host-header values of the configured rule.
func (r *Registrar) HostValues(ctx context.Context) ([]string, error) {
	rule, err := r.rule(ctx)
	if err != nil {
		return nil, err
	}
	_, values := hostHeader(rule.Conditions)
	return values, nil
}

func (r *Registrar) rule(ctx context.Context) (types.Rule, error) {
	if r.RuleARN == "" {
		return types.Rule{}, ErrNotConfigured
	}
	out, err := r.ELB.DescribeRules(ctx, &elbv2.DescribeRulesInput{RuleArns: []string{r.RuleARN}})
	if err != nil {
		return types.Rule{}, fmt.Errorf("describe rule: %w", err)
	}
	if out == nil || len(out.Rules) == 0 {
		return types.Rule{}, fmt.Errorf("%w: %s", ErrRuleNotFound, r.RuleARN)
	}
	return out.Rules[0], nil
}

// hostHeader returns the index of the host-header condition (or -1) and
// its values.
func hostHeader(conds []types.RuleCondition) (int, []string) {
	for i, c := range conds {
		if aws.ToString(c.Field) != hostHeaderField {
			continue
		}
		if c.HostHeaderConfig != nil && len(c.HostHeaderConfig.Values) > 0 {
			return i, append([]string(nil), c.HostHeaderConfig.Values...)
		}
		return i, append([]string(nil), c.Values...)
	}
	return -1, nil
}

// AddHost appends the normalized domain to the rule's host-header values,
// sorted, unless it is already present. Other conditions are kept.
func (r *Registrar) AddHost(ctx context.Context, raw string) (domain.Result, error) {
	ctx, span := otel.Tracer("alb").Start(ctx, "Registrar.AddHost")
	defer span.End()

	host := domainname.Normalize(raw)
	span.SetAttributes(attribute.String("domain", host))

	rule, err := r.rule(ctx)
	if err != nil {
		return domain.Result{}, err
	}
	idx, values := hostHeader(rule.Conditions)
	for _, v := range values {
		if v == host {
			r.Log.Info().Str("domain", host).Msg("domain already in ALB rule")
			return domain.Success(host, domain.StatusNoChanges, fmt.Sprintf("Domain '%s' already exists in ALB rule", host), map[string]any{"hosts": values}), nil
		}
	}

	updated := append(values, host)
	sort.Strings(updated)

	conds := make([]types.RuleCondition, 0, len(rule.Conditions)+1)
	for i, c := range rule.Conditions {
		if i == idx {
			continue
		}
		// Describe returns both Values and the typed config; send only one.
		if c.PathPatternConfig != nil || c.HttpHeaderConfig != nil || c.QueryStringConfig != nil ||
			c.HttpRequestMethodConfig != nil || c.SourceIpConfig != nil {
			c.Values = nil
		}
		conds = append(conds, c)
	}
	conds = append(conds, types.RuleCondition{
		Field:            aws.String(hostHeaderField),
		HostHeaderConfig: &types.HostHeaderConditionConfig{Values: updated},
	})

	if _, err := r.ELB.ModifyRule(ctx, &elbv2.ModifyRuleInput{RuleArn: aws.String(r.RuleARN), Conditions: conds}); err != nil {
		return domain.Result{}, fmt.Errorf("modify rule: %w", err)
	}
	r.Log.Info().Str("domain", host).Int("hosts", len(updated)).Msg("ALB rule updated")
	return domain.Success(host, domain.StatusUpdated, fmt.Sprintf("Domain '%s' added to ALB rule", host), map[string]any{"hosts": updated}), nil
}

// NextPriority returns one more than the highest numeric rule priority on
// the listener, counting from 1 when there is none.
func (r *Registrar) NextPriority(ctx context.Context) (int, error) {
	if r.ListenerARN == "" {
		return 0, errors.New("ALB_LISTENER_ARN is not set")
	}
	highest := 1
	in := &elbv2.DescribeRulesInput{ListenerArn: aws.String(r.ListenerARN)}
	for {
		out, err := r.ELB.DescribeRules(ctx, in)
		if err != nil {
			return 0, fmt.Errorf("describe rules: %w", err)
		}
		for _, rule := range out.Rules {
			if p, err := strconv.Atoi(aws.ToString(rule.Priority)); err == nil && p > highest {
				highest = p
			}
		}
		if out.NextMarker == nil || aws.ToString(out.NextMarker) == "" {
			break
		}
		in.Marker = out.NextMarker
	}
	return highest + 1, nil
}
