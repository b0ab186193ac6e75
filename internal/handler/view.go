package handler

import (
	"github.com/iliyamo/citizen-booking/internal/model"
	"github.com/iliyamo/citizen-booking/internal/paging"
)

// bookingView renders a booking with ids in the route's id format.
type bookingView struct {
	*model.Booking
	ID                any `json:"id"`
	OriginalBookingID any `json:"originalBookingId,omitempty"`
}

func newBookingView(ids IDCodec, b *model.Booking) bookingView {
	v := bookingView{Booking: b, ID: ids.Format(b.ID)}
	if b.OriginalBookingID != nil {
		v.OriginalBookingID = ids.Format(*b.OriginalBookingID)
	}
	return v
}

type changeLogView struct {
	*model.ChangeLogEntry
	BookingID any `json:"bookingId"`
}

func newChangeLogView(ids IDCodec, e *model.ChangeLogEntry) changeLogView {
	return changeLogView{ChangeLogEntry: e, BookingID: ids.Format(e.BookingID)}
}

// mapPage converts the items of a page and keeps its paging metadata.
func mapPage[T, V any](p *paging.Page[T], conv func(*T) V) *paging.Page[V] {
	items := make([]V, len(p.Items))
	for i := range p.Items {
		items[i] = conv(&p.Items[i])
	}
	return &paging.Page[V]{
		Items:         items,
		Total:         p.Total,
		Page:          p.Page,
		Limit:         p.Limit,
		MaxID:         p.MaxID,
		HasMore:       p.HasMore,
		OutdatedMaxID: p.OutdatedMaxID,
	}
}
