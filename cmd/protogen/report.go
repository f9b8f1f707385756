package main

import (
	"fmt"
	"io"

	"github.com/dustin/go-humanize"

	"github.com/wippyai/protogen"
	"github.com/wippyai/protogen/codec"
	"github.com/wippyai/protogen/layout"
	"github.com/wippyai/protogen/model"
)

// messageInfo is one message of the catalogue as shown by check and
// explore.
type messageInfo struct {
	Channel   string
	ChannelID uint32
	Side      string
	ID        uint32
	Name      string
	Member    string
	Wire      string
	Mem       string
	Extra     string
	Fixed     string
	Sizeof    uint64
	Fields    []fieldInfo

	plan *codec.Plan
}

type fieldInfo struct {
	Name string
	Type string
	Note string
}

// catalogue lists every message of the protocol, per channel, server
// messages first.
func catalogue(res *protogen.Result) ([]messageInfo, error) {
	var out []messageInfo
	for _, pc := range res.Protocol.Channels {
		for _, client := range []bool{false, true} {
			side := "server"
			if client {
				side = "client"
			}
			for _, cm := range pc.Channel.Messages(client) {
				plan, err := res.ChannelMessage(pc.Channel.Name, cm.Name, client)
				if err != nil {
					return nil, err
				}
				out = append(out, messageInfo{
					Channel:   pc.Name,
					ChannelID: pc.ID,
					Side:      side,
					ID:        cm.ID,
					Name:      plan.Name,
					Member:    cm.Name,
					Wire:      plan.Formulas.Nw.String(),
					Mem:       plan.Formulas.Mem.String(),
					Extra:     plan.Formulas.Extra.String(),
					Fixed:     fixedSize(plan.Formulas.Nw),
					Sizeof:    plan.Sizeof(),
					Fields:    fields(&cm.Message.Container),
					plan:      plan,
				})
			}
		}
	}
	return out, nil
}

func fixedSize(e layout.Expr) string {
	if n, ok := layout.IsConst(e); ok {
		return humanize.Bytes(n)
	}
	return "variable"
}

func fields(ct *model.Container) []fieldInfo {
	var out []fieldInfo
	for _, c := range ct.Members {
		switch m := c.(type) {
		case *model.Member:
			out = append(out, memberField(m, ""))
		case *model.Switch:
			out = append(out, fieldInfo{Name: m.Name, Type: "switch (" + m.Var + ")"})
			for _, cs := range m.Cases {
				out = append(out, memberField(cs.Member, "  "))
			}
		}
	}
	return out
}

func memberField(m *model.Member, indent string) fieldInfo {
	f := fieldInfo{Name: indent + m.Name, Type: model.Describe(m.Type)}
	if name, ok := m.Attrs.Ident(model.AttrIfdef); ok {
		f.Note = "ifdef " + name
	}
	return f
}

// writeReport prints the size report of a compiled protocol.
func writeReport(w io.Writer, res *protogen.Result, msgs []messageInfo) {
	order := "little-endian"
	if res.Options.BigEndian {
		order = "big-endian"
	}
	fmt.Fprintf(w, "protocol %s: %d channels, %d plans, %d-byte pointers, %s\n",
		res.Protocol.Name, len(res.Protocol.Channels), res.Plans.Len(), res.Options.PointerWidth, order)

	for i := 0; i < len(msgs); {
		j := i
		for j < len(msgs) && msgs[j].Channel == msgs[i].Channel && msgs[j].Side == msgs[i].Side {
			j++
		}
		group := msgs[i:j]
		lo, hi := idRange(group)
		fmt.Fprintf(w, "\nchannel %s = %d, %s messages %d..%d\n", group[0].Channel, group[0].ChannelID, group[0].Side, lo, hi)
		for _, m := range group {
			fmt.Fprintf(w, "  %5d  %-32s wire %-10s memory %s\n", m.ID, m.Name, m.Fixed, humanize.Bytes(m.Sizeof))
			if m.Fixed == "variable" {
				fmt.Fprintf(w, "         nw = %s\n", m.Wire)
			}
			if m.Extra != "0" {
				fmt.Fprintf(w, "         mem = %s\n         extra = %s\n", m.Mem, m.Extra)
			}
		}
		i = j
	}
}

func idRange(msgs []messageInfo) (lo, hi uint32) {
	lo, hi = msgs[0].ID, msgs[0].ID
	for _, m := range msgs[1:] {
		lo = min(lo, m.ID)
		hi = max(hi, m.ID)
	}
	return lo, hi
}
