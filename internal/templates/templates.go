package templates

import (
	"sync"

	"github.com/iamwavecut/tool"
	log "github.com/sirupsen/logrus"
	"gopkg.in/yaml.v2"

	"github.com/wavebreak/modbot/resources"
)

// User-visible moderation texts live in resources/messages so operators can
// reword them without touching the engines. Missing keys render as the key
// itself, which keeps a misconfigured deployment loud but functional.

var state = struct {
	once      sync.Once
	templates map[string]string
}{
	templates: map[string]string{},
}

func load() {
	raw, err := resources.FS.ReadFile("messages/en.yml")
	if err != nil {
		log.WithError(err).Errorln("cant load message templates")
		return
	}
	templates := make(map[string]string)
	if err := yaml.Unmarshal(raw, &templates); err != nil {
		log.WithError(err).Errorln("cant unmarshal message templates")
		return
	}
	state.templates = templates
}

func Render(key string, data map[string]any) string {
	state.once.Do(load)
	tpl, ok := state.templates[key]
	if !ok {
		log.Tracef(`no template for key %q`, key)
		return key
	}
	if data == nil {
		return tpl
	}
	return tool.ExecTemplate(tpl, data)
}
