package codec

import (
	"github.com/wippyai/protogen/layout"
	"github.com/wippyai/protogen/model"
)

type fieldKind int

const (
	kindValue fieldKind = iota
	kindStruct
	kindPointer
	kindArray
	kindSwitch
)

// memRef locates a primitive relative to the start of a container's memory image.
type memRef struct {
	offset uint64
	size   int
}

// Plan is the compiled codec of one message or struct. Plans are immutable
// and safe for concurrent use.
type Plan struct {
	root *containerPlan
	// Message is set for message plans.
	Message  *model.Message
	Name     string
	Formulas layout.Formulas
	opts     Options
	pad      uint64
	align    uint64
	overhead uint64
}

// Sizeof returns the size of the root memory image.
func (p *Plan) Sizeof() uint64 { return p.root.size }

type containerPlan struct {
	ct       *model.Container
	name     string
	fields   []*fieldPlan
	formulas layout.Formulas
	// lengths names members written as byte-length placeholders on encode.
	lengths map[string]int
	size    uint64
}

type fieldPlan struct {
	inner  *containerPlan
	arr    *arrayPlan
	sw     *switchPlan
	name   string
	outvar string
	path   []string
	slot   layout.Slot

	kind  fieldKind
	minor int
	size  int
	width int

	virtualValue uint64

	signed    bool
	virtual   bool
	zero      bool
	nomarshal bool
	toPtr     bool
	ptr       bool
	nonnull   bool
	nocopy    bool
	chunk     bool
	marshall  bool
}

type arrayPlan struct {
	count     layout.Expr
	elem      *elemPlan
	asPtrLen  *memRef
	countRef  *memRef
	refs      []string
	bytesLen  string
	kind      model.SizeKind
	constN    uint64
	elemNw    uint64
	inline    bool
	ptrArray  bool
	asPtr     bool
	bytesOnly bool
	lenSize   int
}

type elemPlan struct {
	inner  *containerPlan
	nw     layout.FixedSize
	sizeof uint64
	size   int
	fixed  bool
	signed bool
	bytes  bool
}

type switchPlan struct {
	cases     []*casePlan
	disc      string
	fixed     layout.FixedSize
	discRef   memRef
	flags     bool
	anon      bool
	fixedsize bool
}

type casePlan struct {
	field  *fieldPlan
	guards []model.Guard
}

// match returns the index of the first case accepting v, or -1.
func (s *switchPlan) match(v uint64) int {
	for i, c := range s.cases {
		for _, g := range c.guards {
			if g.Matches(v, s.flags) {
				return i
			}
		}
	}
	return -1
}

// lookup finds a direct or case field by name.
func (cp *containerPlan) lookup(name string) (*fieldPlan, *fieldPlan, bool) {
	for _, f := range cp.fields {
		if f.name == name && f.kind != kindSwitch {
			return f, nil, true
		}
		if f.kind != kindSwitch {
			continue
		}
		for _, c := range f.sw.cases {
			if c.field.name == name {
				return c.field, f, true
			}
		}
	}
	return nil, nil, false
}
