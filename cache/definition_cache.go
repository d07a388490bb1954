package cache

import (
	"time"

	"github.com/mohitkumar/waterflow/flow"
	c "github.com/patrickmn/go-cache"
)

// DefinitionCache holds parsed definitions by id so a definition is parsed
// once no matter how many traces run it.
type DefinitionCache struct {
	cache *c.Cache
}

func NewDefinitionCache() *DefinitionCache {
	return &DefinitionCache{
		cache: c.New(c.NoExpiration, 10*time.Minute),
	}
}

func (ch *DefinitionCache) Save(def *flow.Definition) {
	ch.cache.Set(def.Id, def, c.NoExpiration)
}

func (ch *DefinitionCache) Get(id string) (*flow.Definition, bool) {
	v, found := ch.cache.Get(id)
	if !found {
		return nil, false
	}
	def, ok := v.(*flow.Definition)
	return def, ok
}

func (ch *DefinitionCache) Ids() []string {
	items := ch.cache.Items()
	ids := make([]string, 0, len(items))
	for id := range items {
		ids = append(ids, id)
	}
	return ids
}
