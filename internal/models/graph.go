package models

// Collection keeps entities of one kind keyed by id in insertion order.
type Collection[T any] struct {
	order []string
	items map[string]*T
}

// Get returns the entity with the given id.
func (c *Collection[T]) Get(id string) (*T, bool) {
	v, ok := c.items[id]
	return v, ok
}

// Has reports whether id is present.
func (c *Collection[T]) Has(id string) bool {
	_, ok := c.items[id]
	return ok
}

// Put stores v under id. New ids are appended; existing ids keep their position.
func (c *Collection[T]) Put(id string, v *T) {
	if c.items == nil {
		c.items = map[string]*T{}
	}
	if _, ok := c.items[id]; !ok {
		c.order = append(c.order, id)
	}
	c.items[id] = v
}

// Remove deletes id, reporting whether it was present.
func (c *Collection[T]) Remove(id string) bool {
	if _, ok := c.items[id]; !ok {
		return false
	}
	delete(c.items, id)
	for i, existing := range c.order {
		if existing == id {
			c.order = append(c.order[:i:i], c.order[i+1:]...)
			break
		}
	}
	return true
}

// Len returns the number of stored entities.
func (c *Collection[T]) Len() int { return len(c.order) }

// Items returns the entities in insertion order.
func (c *Collection[T]) Items() []*T {
	out := make([]*T, 0, len(c.order))
	for _, id := range c.order {
		out = append(out, c.items[id])
	}
	return out
}

// Graph is the in-memory relational view over all three collections.
type Graph struct {
	Students    Collection[Student]
	Instructors Collection[Instructor]
	Courses     Collection[Course]
}

// NewGraph returns an empty graph.
func NewGraph() *Graph {
	return &Graph{}
}

// Exists reports whether an entity of kind with id is present.
func (g *Graph) Exists(kind Kind, id string) bool {
	switch kind {
	case KindStudent:
		return g.Students.Has(id)
	case KindInstructor:
		return g.Instructors.Has(id)
	case KindCourse:
		return g.Courses.Has(id)
	}
	return false
}

// Lookup returns the entity of kind with id.
func (g *Graph) Lookup(kind Kind, id string) (Entity, bool) {
	switch kind {
	case KindStudent:
		if s, ok := g.Students.Get(id); ok {
			return s, true
		}
	case KindInstructor:
		if i, ok := g.Instructors.Get(id); ok {
			return i, true
		}
	case KindCourse:
		if c, ok := g.Courses.Get(id); ok {
			return c, true
		}
	}
	return nil, false
}

// Put stores an entity in its collection.
func (g *Graph) Put(e Entity) {
	switch v := e.(type) {
	case *Student:
		g.Students.Put(v.ID, v)
	case *Instructor:
		g.Instructors.Put(v.ID, v)
	case *Course:
		g.Courses.Put(v.ID, v)
	}
}

// Remove deletes the entity of kind with id.
func (g *Graph) Remove(kind Kind, id string) bool {
	switch kind {
	case KindStudent:
		return g.Students.Remove(id)
	case KindInstructor:
		return g.Instructors.Remove(id)
	case KindCourse:
		return g.Courses.Remove(id)
	}
	return false
}

// Entities returns every entity: students, instructors, then courses.
func (g *Graph) Entities() []Entity {
	out := make([]Entity, 0, g.Students.Len()+g.Instructors.Len()+g.Courses.Len())
	for _, s := range g.Students.Items() {
		out = append(out, s)
	}
	for _, i := range g.Instructors.Items() {
		out = append(out, i)
	}
	for _, c := range g.Courses.Items() {
		out = append(out, c)
	}
	return out
}
