package gen

import (
	"fmt"
	"sort"

	"github.com/wippyai/protogen/model"
)

// enums renders enum and flag types, the protocol channel ids and one
// message id block per channel direction.
func (g *Generator) enums(f *file) error {
	types := g.res.Context.Types()
	for _, t := range types {
		var err error
		switch v := t.(type) {
		case *model.Enum:
			err = g.enumType(f, v.Name, v.Bits, v.Values, v.Attrs, false)
		case *model.Flags:
			err = g.enumType(f, v.Name, v.Bits, v.Values, v.Attrs, true)
		}
		if err != nil {
			return err
		}
	}
	if err := g.channelIDs(f); err != nil {
		return err
	}
	for _, t := range types {
		ch, ok := t.(*model.Channel)
		if !ok {
			continue
		}
		for _, client := range []bool{false, true} {
			if err := g.messageIDs(f, ch, client); err != nil {
				return err
			}
		}
	}
	return nil
}

func (g *Generator) enumType(f *file, name string, bits int, values []model.EnumValue, attrs model.Attrs, flags bool) error {
	typ := ident(g.opts.Prefix, name)
	if err := f.declare(typ, name); err != nil {
		return err
	}

	sorted := append([]model.EnumValue(nil), values...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Value < sorted[j].Value })

	underlying := fmt.Sprintf("uint%d", bits)
	if !flags && len(sorted) > 0 && sorted[0].Value < 0 {
		underlying = fmt.Sprintf("int%d", bits)
	}
	kind := "enum"
	if flags {
		kind = "flag set"
	}
	f.printf("// %s is the %s %s.\n", typ, name, kind)
	f.printf("type %s %s\n\nconst (\n", typ, underlying)

	labelPrefix, custom := attrs.Ident(model.AttrPrefix)
	var mask uint64
	next := int64(0)
	for _, v := range sorted {
		c := ident(g.opts.Prefix, name, v.Name)
		if custom {
			c = ident(labelPrefix + v.Name)
		}
		if err := f.declare(c, name+"."+v.Name); err != nil {
			return err
		}
		if flags {
			mask |= 1 << uint(v.Value)
			f.printf("\t%s %s = 1 << %d\n", c, typ, v.Value)
			continue
		}
		f.printf("\t%s %s = %d\n", c, typ, v.Value)
		next = v.Value + 1
	}

	var end string
	if flags {
		end = ident(g.opts.Prefix, name, "mask")
	} else {
		end = ident(g.opts.Prefix, name, "enum_end")
	}
	if err := f.declare(end, name); err != nil {
		return err
	}
	if flags {
		f.printf("\n\t%s %s = 0x%x\n", end, typ, mask)
	} else {
		f.printf("\n\t%s %s = %d\n", end, typ, next)
	}
	f.printf(")\n\n")
	return nil
}

func (g *Generator) channelIDs(f *file) error {
	proto := g.res.Protocol
	f.printf("// Channel ids of the %s protocol.\nconst (\n", proto.Name)
	next := uint32(0)
	for _, pc := range proto.Channels {
		c := ident(g.opts.Prefix, "channel", pc.Name)
		if err := f.declare(c, proto.Name+"."+pc.Name); err != nil {
			return err
		}
		f.printf("\t%s = %d\n", c, pc.ID)
		next = pc.ID + 1
	}
	end := ident(g.opts.Prefix, "end_channel")
	if err := f.declare(end, proto.Name); err != nil {
		return err
	}
	f.printf("\n\t%s = %d\n)\n\n", end, next)
	return nil
}

// messageIDs renders the ids of the messages a channel declares itself.
// Inherited messages keep the constants of their declaring channel.
func (g *Generator) messageIDs(f *file, ch *model.Channel, client bool) error {
	var own []*model.ChannelMessage
	for _, cm := range ch.Messages(client) {
		if cm.Channel == ch {
			own = append(own, cm)
		}
	}
	if len(own) == 0 {
		return nil
	}

	dir := "server"
	if client {
		dir = "client"
	}
	f.printf("// %s %s message ids.\nconst (\n", ch.Name, dir)
	next := uint32(0)
	for _, cm := range own {
		c := ident(g.opts.Prefix, messageName(ch.MemberName, cm.Name, client))
		if err := f.declare(c, ch.Name+"."+cm.Name); err != nil {
			return err
		}
		f.printf("\t%s = %d\n", c, cm.ID)
		next = cm.ID + 1
	}
	if ch.MemberName != "" {
		end := ident(g.opts.Prefix, messageName("end", ch.MemberName, client))
		if err := f.declare(end, ch.Name); err != nil {
			return err
		}
		f.printf("\n\t%s = %d\n", end, next)
	}
	f.printf(")\n\n")
	return nil
}
