package openai

import (
	"sync"

	"github.com/casualjim/roost/api"
	"github.com/casualjim/roost/internal/registry"
	"github.com/casualjim/roost/provider"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// Models holds every model handed out by this package, by name. The first
// request options given for a name win.
var Models = registry.New[api.Model]()

func GPT4oMini(opts ...option.RequestOption) api.Model {
	return Model(openai.ChatModelGPT4oMini, opts...)
}

func GPT4o(opts ...option.RequestOption) api.Model {
	return Model(openai.ChatModelGPT4o, opts...)
}

// Model returns the chat model called name. The provider client is created
// on first use.
func Model(name string, opts ...option.RequestOption) api.Model {
	m, _ := Models.GetOrAdd(name, func() api.Model {
		return &model{name: name, opts: opts}
	})
	return m
}

var _ api.Model = (*model)(nil)

type model struct {
	name string
	opts []option.RequestOption

	once sync.Once
	prov *Provider
}

func (m *model) Name() string {
	return m.name
}

func (m *model) Provider() provider.Provider {
	m.once.Do(func() {
		m.prov = New(m.opts...)
	})
	return m.prov
}
