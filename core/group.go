package core

import (
	"context"

	"pkt.systems/tabtidy/internal/logx"
	"pkt.systems/tabtidy/schema"
)

// GroupByDomain groups tabs that share a hostname. Any group call failure
// stops the operation.
func (e *engine) GroupByDomain(ctx context.Context, id schema.WindowID) error {
	const op = schema.OpGroupByDomain
	log := logx.WithWindow(ctx, id)
	log.Info("engine group start")

	window, err := e.getWindow(ctx, op, id)
	if err != nil {
		return err
	}
	var order []string
	members := make(map[string][]schema.TabID)
	for _, tab := range window.Tabs {
		host, err := Hostname(tab.URL)
		if err != nil {
			logx.WithTab(log, tab).Warn("engine group skip tab", "err", err)
			continue
		}
		if _, ok := members[host]; !ok {
			order = append(order, host)
		}
		members[host] = append(members[host], tab.ID)
	}

	groups := 0
	for _, host := range order {
		ids := members[host]
		if len(ids) < 2 {
			continue
		}
		groupID, err := e.tabs.GroupTabs(ctx, ids)
		if err != nil {
			return opErr(op, PhaseCreateGroup, id, ids[0], err)
		}
		color := e.pickColor()
		if err := e.tabs.UpdateGroup(ctx, groupID, schema.GroupUpdate{Title: host, Color: color}); err != nil {
			return opErr(op, PhaseUpdateGroup, id, ids[0], err)
		}
		log.Debug("engine group created", "group", int64(groupID), "host", host, "color", string(color), "tabs", len(ids))
		groups++
	}
	log.Info("engine group ok", "groups", groups)
	return nil
}
