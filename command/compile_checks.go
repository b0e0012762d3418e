package command

import gocmd "github.com/goliatone/go-command"

var (
	_ gocmd.Commander[ProcessDeliveryMessage] = (*ProcessDeliveryCommand)(nil)
	_ gocmd.Commander[ReplayDeliveryMessage]  = (*ReplayDeliveryCommand)(nil)
	_ gocmd.Commander[PruneDeliveriesMessage] = (*PruneDeliveriesCommand)(nil)
	_ gocmd.Commander[SyncUserMessage]        = (*SyncUserCommand)(nil)
)
