package codec

import (
	"cmp"
	"slices"

	"go.uber.org/zap"

	"github.com/wippyai/protogen/errors"
	"github.com/wippyai/protogen/model"
)

// Side selects which direction of each channel a dispatcher parses.
type Side int

const (
	// Server parses client messages and marshals server messages.
	Server Side = iota
	// Client parses server messages and marshals client messages.
	Client
)

func (s Side) String() string {
	if s == Client {
		return "client"
	}
	return "server"
}

// messageRange is a run of consecutive message ids.
type messageRange struct {
	plans []*Plan
	first uint32
}

type channelTable struct {
	ranges []messageRange
	max    uint32
}

func (t *channelTable) lookup(id uint32) *Plan {
	for _, r := range t.ranges {
		if id >= r.first && id < r.first+uint32(len(r.plans)) {
			return r.plans[id-r.first]
		}
	}
	return nil
}

// Dispatcher maps (channel, message type) to message plans.
type Dispatcher struct {
	incoming map[uint32]*channelTable
	outgoing map[uint32]*channelTable
	side     Side
}

// NewDispatcher builds the lookup tables of every protocol channel.
func NewDispatcher(proto *model.Protocol, plans *Plans, side Side) (*Dispatcher, error) {
	d := &Dispatcher{
		incoming: make(map[uint32]*channelTable),
		outgoing: make(map[uint32]*channelTable),
		side:     side,
	}
	for _, pc := range proto.Channels {
		in, err := buildTable(pc, plans, side == Server)
		if err != nil {
			return nil, err
		}
		out, err := buildTable(pc, plans, side == Client)
		if err != nil {
			return nil, err
		}
		d.incoming[pc.ID] = in
		d.outgoing[pc.ID] = out
		Logger().Debug("dispatch table",
			zap.String("channel", pc.Name),
			zap.Uint32("id", pc.ID),
			zap.Int("ranges", len(in.ranges)),
			zap.Uint32("max", in.max))
	}
	return d, nil
}

func buildTable(pc *model.ProtocolChannel, plans *Plans, client bool) (*channelTable, error) {
	slots := slices.Clone(pc.Channel.Messages(client))
	slices.SortStableFunc(slots, func(a, b *model.ChannelMessage) int {
		return cmp.Compare(a.ID, b.ID)
	})

	t := &channelTable{}
	for _, slot := range slots {
		p, ok := plans.Get(slot.Message)
		if !ok {
			return nil, errors.New(errors.PhaseDispatch, errors.KindUnknownType).
				Path(pc.Name, slot.Name).
				Detail("message %s was not compiled", slot.Message.CName()).
				Build()
		}
		n := len(t.ranges)
		switch {
		case n > 0 && slot.ID == t.max:
			// duplicate id: the later slot wins
			r := &t.ranges[n-1]
			r.plans[len(r.plans)-1] = p
		case n > 0 && slot.ID == t.max+1:
			t.ranges[n-1].plans = append(t.ranges[n-1].plans, p)
		default:
			t.ranges = append(t.ranges, messageRange{first: slot.ID, plans: []*Plan{p}})
		}
		t.max = slot.ID
	}
	return t, nil
}

// Side returns the dispatcher's side.
func (d *Dispatcher) Side() Side { return d.side }

// Lookup returns the plan of an incoming message.
func (d *Dispatcher) Lookup(channel uint32, msgType uint16) (*Plan, error) {
	return lookup(d.incoming, channel, msgType)
}

// Outgoing returns the plan of a message this side sends.
func (d *Dispatcher) Outgoing(channel uint32, msgType uint16) (*Plan, error) {
	return lookup(d.outgoing, channel, msgType)
}

func lookup(tables map[uint32]*channelTable, channel uint32, msgType uint16) (*Plan, error) {
	t, ok := tables[channel]
	if !ok {
		return nil, errors.NoSuchMessage(channel, msgType)
	}
	p := t.lookup(uint32(msgType))
	if p == nil {
		return nil, errors.NoSuchMessage(channel, msgType)
	}
	return p, nil
}

// Parse decodes an incoming message body.
func (d *Dispatcher) Parse(channel uint32, msgType uint16, minor int, data []byte) (*Message, error) {
	p, err := d.Lookup(channel, msgType)
	if err != nil {
		return nil, err
	}
	return p.Decode(data, minor)
}

// MaxMessageType returns the largest incoming message id of a channel.
func (d *Dispatcher) MaxMessageType(channel uint32) (uint16, error) {
	t, ok := d.incoming[channel]
	if !ok {
		return 0, errors.New(errors.PhaseDispatch, errors.KindNoSuchMessage).
			Detail("no channel %d", channel).
			Build()
	}
	return uint16(t.max), nil
}
