// Package blog writes a blog post about a topic. The draft is scored for SEO
// and rewritten until it scores at least PassingScore.
package blog

import (
	"context"
	"errors"
	"strings"

	"github.com/casualjim/roost/agent"
	"github.com/casualjim/roost/api"
	"github.com/casualjim/roost/crew"
	"github.com/casualjim/roost/flow"
	"github.com/casualjim/roost/tool"
	"github.com/fogfish/opts"
)

const FlowName = "blog_content_maker"

const (
	StepInit     = "init_make_blog_content"
	StepResearch = "research_by_topic"
	StepWrite    = "handle_make_blog"
	StepSEO      = "manage_seo"
	StepScore    = "manage_score_router"
	LabelRemake  = "remake"
)

const (
	PassingScore     = 70
	DefaultMaxLength = 1000
	// DefaultMaxRemakes bounds how often a post is rewritten.
	DefaultMaxRemakes = 3
)

type Post struct {
	Title   string   `json:"title"`
	Content string   `json:"content"`
	Hashtag []string `json:"hashtag"`
}

type ScoreManager struct {
	Score  int    `json:"score" jsonschema:"minimum=0,maximum=100"`
	Reason string `json:"reason"`
}

// Result is the final state of the flow.
type Result struct {
	Topic        string        `json:"topic"`
	MaxLength    int           `json:"max_length"`
	Research     string        `json:"research"`
	ScoreManager *ScoreManager `json:"score_manager"`
	Post         *Post         `json:"post"`
}

type Writer struct {
	model      api.Model
	research   []tool.Definition
	maxRemakes int
	flowOpts   []flow.Option
	graph      *flow.Graph

	researcher api.Agent
	writer     api.Agent
	seo        api.Agent
}

type Option = opts.Option[Writer]

var (
	Model      = opts.ForName[Writer, api.Model]("model")
	MaxRemakes = opts.ForName[Writer, int]("maxRemakes")
)

// Research adds the tools the researcher may use.
func Research(tools ...tool.Definition) Option {
	return opts.Type[Writer](func(w *Writer) error {
		w.research = append(w.research, tools...)
		return nil
	})
}

func Flow(options ...flow.Option) Option {
	return opts.Type[Writer](func(w *Writer) error {
		w.flowOpts = append(w.flowOpts, options...)
		return nil
	})
}

func New(options ...Option) (*Writer, error) {
	w := &Writer{maxRemakes: DefaultMaxRemakes}
	if err := opts.Apply(w, options); err != nil {
		return nil, err
	}
	if w.model == nil {
		return nil, errors.New("blog: a model is required")
	}

	researcherOpts := []agent.Option{
		agent.Name("researcher"),
		agent.Model(w.model),
		agent.Role("Senior Researcher"),
		agent.Goal("Collect current, verifiable facts about the topic"),
		agent.Backstory("You dig through news and papers and summarize what matters for a general audience."),
	}
	if len(w.research) > 0 {
		researcherOpts = append(researcherOpts, agent.Tools(w.research[0], w.research[1:]...))
	}
	w.researcher = agent.New(researcherOpts...)
	w.writer = agent.New(
		agent.Name("writer"),
		agent.Model(w.model),
		agent.Role("Blog Writer"),
		agent.Goal("Write engaging, accurate blog posts"),
		agent.Backstory("You turn research notes into posts people want to share."),
	)
	w.seo = agent.New(
		agent.Name("seo_specialist"),
		agent.Model(w.model),
		agent.Role("SEO Specialist"),
		agent.Goal("Score blog posts for search visibility and explain how to improve them"),
		agent.Backstory("You have optimized thousands of posts for search engines."),
	)

	flowOpts := append([]flow.Option{
		flow.Fields(
			flow.Field("topic", ""),
			flow.Field("max_length", DefaultMaxLength),
			flow.Field("research", ""),
			flow.Field[*ScoreManager]("score_manager", nil),
			flow.Field[*Post]("post", nil),
		),
		flow.MaxReentries(w.maxRemakes),
	}, w.flowOpts...)

	g, err := flow.New(FlowName, flowOpts...).
		Start(StepInit, initMakeBlogContent).
		Step(StepResearch, w.researchByTopic, StepInit).
		Join(StepWrite, w.handleMakeBlog, StepResearch).
		Step(StepSEO, w.manageSEO, StepWrite).
		Router(StepScore, manageScoreRouter, flow.Routes{LabelRemake: flow.To(StepWrite)}, StepSEO).
		Build()
	if err != nil {
		return nil, err
	}
	w.graph = g
	return w, nil
}

func (w *Writer) Graph() *flow.Graph { return w.graph }

// Write runs the flow for a topic. maxLength caps the post length in
// characters; zero means DefaultMaxLength.
func (w *Writer) Write(ctx context.Context, topic string, maxLength int) (Result, error) {
	inputs := map[string]any{"topic": topic}
	if maxLength > 0 {
		inputs["max_length"] = maxLength
	}
	final, err := w.graph.Kickoff(ctx, inputs)
	if err != nil {
		return Result{}, err
	}
	return flow.Decode[Result](final)
}

func initMakeBlogContent(_ context.Context, s flow.Snapshot) (flow.Delta, error) {
	if strings.TrimSpace(flow.Value[string](s, "topic")) == "" {
		return nil, errors.New("a topic is required")
	}
	if flow.Value[int](s, "max_length") <= 0 {
		return flow.Delta{"max_length": DefaultMaxLength}, nil
	}
	return nil, nil
}

func (w *Writer) researchByTopic(ctx context.Context, s flow.Snapshot) (flow.Delta, error) {
	c := crew.New(
		crew.Name(FlowName),
		crew.Agents(w.researcher),
		crew.Tasks(crew.Step("researcher", researchTask, "A bullet list of facts with their sources")),
	)
	out, err := c.Kickoff(ctx, s.Map())
	if err != nil {
		return nil, err
	}
	return flow.Delta{"research": out.Raw}, nil
}

func (w *Writer) handleMakeBlog(ctx context.Context, s flow.Snapshot) (flow.Delta, error) {
	inputs := s.Map()
	inputs["feedback"] = ""
	if sm := flow.Value[*ScoreManager](s, "score_manager"); sm != nil {
		inputs["feedback"] = sm.Reason
	}
	c := crew.New(
		crew.Name(FlowName),
		crew.Agents(w.writer),
		crew.Tasks(crew.Step("writer", writeTask, "A blog post with a title, the content and hashtags")),
	)
	post, _, err := crew.Typed[Post](ctx, c, inputs)
	if err != nil {
		return nil, err
	}
	return flow.Delta{"post": &post}, nil
}

func (w *Writer) manageSEO(ctx context.Context, s flow.Snapshot) (flow.Delta, error) {
	post := flow.Value[*Post](s, "post")
	if post == nil {
		return nil, errors.New("no post to score")
	}
	inputs := s.Map()
	inputs["title"] = post.Title
	inputs["content"] = post.Content
	inputs["hashtags"] = strings.Join(post.Hashtag, " ")

	c := crew.New(
		crew.Name(FlowName),
		crew.Agents(w.seo),
		crew.Tasks(crew.Step("seo_specialist", seoTask, "A score from 0 to 100 and the reason for it")),
	)
	score, _, err := crew.Typed[ScoreManager](ctx, c, inputs)
	if err != nil {
		return nil, err
	}
	return flow.Delta{"score_manager": &score}, nil
}

func manageScoreRouter(_ context.Context, s flow.Snapshot) (string, error) {
	sm := flow.Value[*ScoreManager](s, "score_manager")
	if sm != nil && sm.Score >= PassingScore {
		return "", nil
	}
	return LabelRemake, nil
}

const researchTask = `Research the latest developments about {{.topic}}.`

const writeTask = `Write a blog post about {{.topic}} of at most {{.max_length}} characters, based on this research:

{{.research}}
{{if .feedback}}
A previous draft was rejected for this reason, fix it: {{.feedback}}{{end}}`

const seoTask = `Score this blog post about {{.topic}} for SEO on a scale from 0 to 100.

Title: {{.title}}
Hashtags: {{.hashtags}}

{{.content}}`
