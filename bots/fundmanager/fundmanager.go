// Package fundmanager analyzes an investment request. A strategist picks a
// growth or a value strategy, the matching branch researches candidates and
// both branches meet again to build the portfolio.
package fundmanager

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/casualjim/roost/agent"
	"github.com/casualjim/roost/api"
	"github.com/casualjim/roost/crew"
	"github.com/casualjim/roost/flow"
	"github.com/casualjim/roost/tool"
	"github.com/fogfish/opts"
)

const FlowName = "fund_manager"

const (
	StepInit       = "init_fund_analysis"
	StepStrategy   = "analyze_investment_strategy"
	StepRouter     = "strategy_router"
	StepTechTrends = "analyze_tech_trends"
	StepGrowth     = "evaluate_growth_potential"
	StepStable     = "screen_stable_companies"
	StepValue      = "evaluate_value_potential"
	StepSynthesize = "synthesize_portfolio"
	StepRecommend  = "finalize_investment_recommendation"
)

// Router labels and the strategies they stand for.
const (
	LabelGrowth    = "growth_analysis"
	LabelValue     = "value_analysis"
	StrategyGrowth = "growth"
	StrategyValue  = "value"
)

// Request is what the investor asks for.
type Request struct {
	InvestmentGoal string  `json:"investment_goal"`
	RiskPreference string  `json:"risk_preference"`
	Budget         float64 `json:"budget"`
}

// Recommendation is the final state of an analysis.
type Recommendation struct {
	Request
	StrategyType    string `json:"strategy_type"`
	TechTrends      string `json:"tech_trends"`
	GrowthScores    string `json:"growth_scores"`
	StabilityScores string `json:"stability_scores"`
	DividendScores  string `json:"dividend_scores"`
	Portfolio       string `json:"portfolio"`
	Recommendation  string `json:"recommendation"`
}

// Strategy is the structured answer of the strategist.
type Strategy struct {
	StrategyType string `json:"strategy_type" jsonschema:"enum=growth,enum=value"`
	Reasoning    string `json:"reasoning"`
}

type Manager struct {
	model    api.Model
	research []tool.Definition
	market   []tool.Definition
	graph    *flow.Graph
	agents   map[string]api.Agent
	flowOpts []flow.Option
}

type Option = opts.Option[Manager]

var Model = opts.ForName[Manager, api.Model]("model")

// Research adds web search tools for the trend and screening analysts.
func Research(tools ...tool.Definition) Option {
	return opts.Type[Manager](func(m *Manager) error {
		m.research = append(m.research, tools...)
		return nil
	})
}

// Market adds market data tools for the evaluators.
func Market(tools ...tool.Definition) Option {
	return opts.Type[Manager](func(m *Manager) error {
		m.market = append(m.market, tools...)
		return nil
	})
}

// Flow passes options through to the underlying flow, e.g. hooks.
func Flow(options ...flow.Option) Option {
	return opts.Type[Manager](func(m *Manager) error {
		m.flowOpts = append(m.flowOpts, options...)
		return nil
	})
}

func New(options ...Option) (*Manager, error) {
	m := &Manager{}
	if err := opts.Apply(m, options); err != nil {
		return nil, err
	}
	if m.model == nil {
		return nil, errors.New("fundmanager: a model is required")
	}
	m.agents = m.buildAgents()

	flowOpts := append([]flow.Option{flow.Fields(
		flow.Field("investment_goal", ""),
		flow.Field("risk_preference", ""),
		flow.Field("budget", 0.0),
		flow.Field("strategy_type", ""),
		flow.Field("tech_trends", ""),
		flow.Field("growth_scores", ""),
		flow.Field("stability_scores", ""),
		flow.Field("dividend_scores", ""),
		flow.Field("portfolio", ""),
		flow.Field("recommendation", ""),
	)}, m.flowOpts...)

	g, err := flow.New(FlowName, flowOpts...).
		Start(StepInit, initFundAnalysis).
		Step(StepStrategy, m.analyzeStrategy, StepInit).
		Router(StepRouter, strategyRouter, flow.Routes{
			LabelGrowth: flow.To(StepTechTrends),
			LabelValue:  flow.To(StepStable),
		}, StepStrategy).
		Step(StepTechTrends, m.task("tech_trend_analyst", techTrendsTask, "tech_trends")).
		Step(StepGrowth, m.task("growth_evaluator", growthTask, "growth_scores"), StepTechTrends).
		Step(StepStable, m.task("stability_screener", stableTask, "stability_scores")).
		Step(StepValue, m.task("value_evaluator", valueTask, "dividend_scores"), StepStable).
		Join(StepSynthesize, m.task("portfolio_manager", synthesizeTask, "portfolio"), StepGrowth, StepValue).
		Step(StepRecommend, m.task("portfolio_manager", recommendTask, "recommendation"), StepSynthesize).
		Build()
	if err != nil {
		return nil, err
	}
	m.graph = g
	return m, nil
}

func (m *Manager) Graph() *flow.Graph { return m.graph }

// Analyze runs the whole analysis for one request.
func (m *Manager) Analyze(ctx context.Context, req Request) (Recommendation, error) {
	final, err := m.graph.Kickoff(ctx, map[string]any{
		"investment_goal": req.InvestmentGoal,
		"risk_preference": req.RiskPreference,
		"budget":          req.Budget,
	})
	if err != nil {
		return Recommendation{}, err
	}
	return flow.Decode[Recommendation](final)
}

func initFundAnalysis(_ context.Context, s flow.Snapshot) (flow.Delta, error) {
	var errs []error
	if strings.TrimSpace(flow.Value[string](s, "investment_goal")) == "" {
		errs = append(errs, errors.New("an investment goal is required"))
	}
	if strings.TrimSpace(flow.Value[string](s, "risk_preference")) == "" {
		errs = append(errs, errors.New("a risk preference is required"))
	}
	if flow.Value[float64](s, "budget") <= 0 {
		errs = append(errs, errors.New("a budget is required"))
	}
	return nil, errors.Join(errs...)
}

func (m *Manager) analyzeStrategy(ctx context.Context, s flow.Snapshot) (flow.Delta, error) {
	c := crew.New(
		crew.Name(FlowName),
		crew.Agents(m.agents["investment_strategist"]),
		crew.Tasks(crew.Step("investment_strategist", strategyTask, "Either growth or value, with the reasoning behind it")),
	)
	strategy, _, err := crew.Typed[Strategy](ctx, c, s.Map())
	if err != nil {
		return nil, err
	}
	return flow.Delta{"strategy_type": strings.ToLower(strings.TrimSpace(strategy.StrategyType))}, nil
}

func strategyRouter(_ context.Context, s flow.Snapshot) (string, error) {
	switch flow.Value[string](s, "strategy_type") {
	case StrategyGrowth:
		return LabelGrowth, nil
	case StrategyValue:
		return LabelValue, nil
	default:
		return "", nil
	}
}

// task returns a step body that runs one crew task and stores its answer in
// field.
func (m *Manager) task(agentName, description, field string) flow.Func {
	return func(ctx context.Context, s flow.Snapshot) (flow.Delta, error) {
		a, ok := m.agents[agentName]
		if !ok {
			return nil, fmt.Errorf("unknown agent %s", agentName)
		}
		c := crew.New(
			crew.Name(FlowName),
			crew.Agents(a),
			crew.Tasks(crew.Step(agentName, description, "")),
		)
		out, err := c.Kickoff(ctx, s.Map())
		if err != nil {
			return nil, err
		}
		return flow.Delta{field: out.Raw}, nil
	}
}

func (m *Manager) buildAgents() map[string]api.Agent {
	newAgent := func(name, role, goal, backstory string, tools []tool.Definition) api.Agent {
		options := []agent.Option{
			agent.Name(name),
			agent.Model(m.model),
			agent.Role(role),
			agent.Goal(goal),
			agent.Backstory(backstory),
		}
		if len(tools) > 0 {
			options = append(options, agent.Tools(tools[0], tools[1:]...))
		}
		return agent.New(options...)
	}

	return map[string]api.Agent{
		"investment_strategist": newAgent("investment_strategist", "Investment Strategist",
			"Pick the strategy that fits the investor's goal and risk preference",
			"You have twenty years of experience matching portfolios to investor profiles.", nil),
		"tech_trend_analyst": newAgent("tech_trend_analyst", "Technology Trend Analyst",
			"Identify the technology sectors and companies with the strongest momentum",
			"You follow emerging technology markets and know which trends are backed by revenue.", m.research),
		"growth_evaluator": newAgent("growth_evaluator", "Growth Stock Evaluator",
			"Score growth candidates on revenue growth, valuation and momentum",
			"You are a quantitative analyst focused on high growth equities.", m.market),
		"stability_screener": newAgent("stability_screener", "Stable Company Screener",
			"Find established companies with steady earnings and reliable dividends",
			"You screen blue chip and dividend stocks for conservative investors.", m.research),
		"value_evaluator": newAgent("value_evaluator", "Value Stock Evaluator",
			"Score value candidates on dividend yield, payout safety and valuation",
			"You are a value investor who looks for durable businesses at fair prices.", m.market),
		"portfolio_manager": newAgent("portfolio_manager", "Portfolio Manager",
			"Build a diversified portfolio that respects the budget and risk preference",
			"You manage client portfolios and explain allocations in plain language.", nil),
	}
}

const strategyTask = `An investor wants to invest {{.budget}}.
Goal: {{.investment_goal}}
Risk preference: {{.risk_preference}}

Decide whether a growth strategy or a value strategy fits this investor best.`

const techTrendsTask = `Research the current technology trends relevant to this goal: {{.investment_goal}}.
List the most promising sectors and five candidate companies with their tickers.`

const growthTask = `Evaluate the growth potential of these candidates:

{{.tech_trends}}

Look up market data for each ticker and give every company a growth score from 1 to 10.`

const stableTask = `Screen for stable, dividend paying companies that fit this goal: {{.investment_goal}}.
List five candidates with their tickers.`

const valueTask = `Evaluate the value potential of these candidates:

{{.stability_scores}}

Look up market data for each ticker and give every company a value score from 1 to 10.`

const synthesizeTask = `Build a portfolio for a budget of {{.budget}} and a {{.risk_preference}} risk preference
using the {{.strategy_type}} analysis below.

{{if .growth_scores}}{{.growth_scores}}{{else}}{{.dividend_scores}}{{end}}

Give the allocation per company in percent and in money.`

const recommendTask = `Write the final investment recommendation for the investor based on this portfolio:

{{.portfolio}}

Include the expected risk, the rationale for each position and when to rebalance.`
