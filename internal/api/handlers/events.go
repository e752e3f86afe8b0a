package handlers

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/outreach-portal/server/internal/api/middleware"
	"github.com/outreach-portal/server/internal/api/pagination"
	"github.com/outreach-portal/server/internal/api/render"
	"github.com/outreach-portal/server/internal/auth"
	"github.com/outreach-portal/server/internal/domain/events"
	"github.com/outreach-portal/server/internal/validation"
)

type EventService interface {
	List(ctx context.Context, opts events.ListOptions) (events.ListResult, error)
	Categories(ctx context.Context) ([]string, error)
	Masters(ctx context.Context) ([]events.MasterEvent, error)
	Get(ctx context.Context, id int64) (*events.Instance, error)
	Create(ctx context.Context, req events.WriteRequest) (*events.Instance, error)
	Update(ctx context.Context, id int64, req events.WriteRequest) (*events.Instance, error)
	Delete(ctx context.Context, id int64) error
}

type EventsHandler struct {
	*Pages
	service  EventService
	location *time.Location
}

// NewEventsHandler interprets submitted start and end times in loc.
func NewEventsHandler(pages *Pages, service EventService, loc *time.Location) *EventsHandler {
	if loc == nil {
		loc = time.UTC
	}
	return &EventsHandler{Pages: pages, service: service, location: loc}
}

type eventListResponse struct {
	Events   []events.Instance `json:"events"`
	User     auth.Identity     `json:"user"`
	Total    int               `json:"total"`
	Page     int               `json:"page"`
	PageSize int               `json:"page_size"`
}

// List handles GET /events. XHR and JSON-accepting callers get the page as
// JSON; browsers get the HTML list.
func (h *EventsHandler) List(w http.ResponseWriter, r *http.Request) {
	result, err := h.service.List(r.Context(), events.ListOptions{
		Filters: filters(r),
		Page:    pagination.ParsePage(r),
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}

	if middleware.WantsJSON(r) {
		instances := result.Instances
		if instances == nil {
			instances = []events.Instance{}
		}
		writeJSON(w, http.StatusOK, eventListResponse{
			Events:   instances,
			User:     actor(r),
			Total:    result.Total,
			Page:     result.Page,
			PageSize: result.PageSize,
		})
		return
	}

	categories, err := h.service.Categories(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	page := h.page(r, "Events", "events")
	page.Data["Events"] = result.Instances
	page.Data["Categories"] = categories
	page.Data["Search"] = r.URL.Query().Get("search")
	page.Data["Category"] = r.URL.Query().Get("category")
	page.Data["Page"] = pagination.New(r, result.Page, result.PageSize, result.Total)
	h.html(w, r, http.StatusOK, "events.html", page)
}

func (h *EventsHandler) editorPage(w http.ResponseWriter, r *http.Request, title string, inst *events.Instance) (render.Page, bool) {
	page := h.page(r, title, "events")
	if inst == nil {
		masters, err := h.service.Masters(r.Context())
		if err != nil {
			h.fail(w, r, err)
			return page, false
		}
		page.Data["Masters"] = masters
		return page, true
	}
	page.Data["Event"] = inst
	page.Form = instanceValues(inst, h.location)
	return page, true
}

func instanceValues(inst *events.Instance, loc *time.Location) url.Values {
	v := url.Values{}
	v.Set("title", inst.Title)
	v.Set("category", inst.Category)
	v.Set("description", inst.Description)
	v.Set("location", inst.Location)
	v.Set("start_time", inst.StartTime.In(loc).Format("2006-01-02T15:04"))
	if inst.EndTime != nil {
		v.Set("end_time", inst.EndTime.In(loc).Format("2006-01-02T15:04"))
	}
	if inst.Capacity != nil {
		v.Set("capacity", strconv.Itoa(*inst.Capacity))
	}
	return v
}

func (h *EventsHandler) writeRequest(r *http.Request) (events.WriteRequest, validation.Errors) {
	errs := validation.Errors{}
	req := events.WriteRequest{
		MasterID: formInt64(errs, r, "master_event_id"),
		Master: events.MasterParams{
			Name:        formString(r, "title"),
			Type:        formString(r, "category"),
			Description: formString(r, "description"),
		},
		Instance: events.InstanceParams{
			Location: formString(r, "location"),
			Capacity: formOptionalInt(errs, r, "capacity"),
		},
	}
	if raw := formString(r, "start_time"); raw != "" {
		start, err := validation.ParseDateTime(raw, h.location)
		if err != nil {
			errs.Add("start_time", "Must be a valid date and time")
		} else {
			req.Instance.StartTime = start.UTC()
		}
	}
	if raw := formString(r, "end_time"); raw != "" {
		end, err := validation.ParseDateTime(raw, h.location)
		if err != nil {
			errs.Add("end_time", "Must be a valid date and time")
		} else {
			end = end.UTC()
			req.Instance.EndTime = &end
		}
	}
	return req, errs
}

// AddPage handles GET /events/add.
func (h *EventsHandler) AddPage(w http.ResponseWriter, r *http.Request) {
	page, ok := h.editorPage(w, r, "Add event", nil)
	if !ok {
		return
	}
	h.html(w, r, http.StatusOK, "event_form.html", page)
}

// Add handles POST /events/add. The form either names an existing master
// event or describes a new one.
func (h *EventsHandler) Add(w http.ResponseWriter, r *http.Request) {
	if !parseForm(w, r, h.Pages) {
		return
	}
	req, errs := h.writeRequest(r)
	page, ok := h.editorPage(w, r, "Add event", nil)
	if !ok {
		return
	}
	if err := errs.Err(); err != nil {
		h.formPage(w, r, http.StatusBadRequest, "event_form.html", page, errs)
		return
	}

	inst, err := h.service.Create(r.Context(), req)
	var id int64
	if inst != nil {
		id = inst.ID
	}
	h.record(r, "event.create", "event_instance", id, err)
	if err != nil {
		h.rejectForm(w, r, err, "event_form.html", page)
		return
	}
	done(w, r, "/events", map[string]any{"event": inst})
}

// EditPage handles GET /events/{id}/edit.
func (h *EventsHandler) EditPage(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		h.notFound(w, r)
		return
	}
	inst, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	page, _ := h.editorPage(w, r, "Edit event", inst)
	h.html(w, r, http.StatusOK, "event_form.html", page)
}

// Edit handles POST /events/{id}/edit. The master event is edited along with
// the instance.
func (h *EventsHandler) Edit(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		h.notFound(w, r)
		return
	}
	inst, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if !parseForm(w, r, h.Pages) {
		return
	}
	req, errs := h.writeRequest(r)
	page, _ := h.editorPage(w, r, "Edit event", inst)
	if err := errs.Err(); err != nil {
		h.formPage(w, r, http.StatusBadRequest, "event_form.html", page, errs)
		return
	}

	updated, err := h.service.Update(r.Context(), id, req)
	h.record(r, "event.update", "event_instance", id, err)
	if err != nil {
		h.rejectForm(w, r, err, "event_form.html", page)
		return
	}
	done(w, r, "/events", map[string]any{"event": updated})
}

// Delete handles POST /events/{id}/delete. Only the instance is removed.
func (h *EventsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		h.notFound(w, r)
		return
	}
	err := h.service.Delete(r.Context(), id)
	h.record(r, "event.delete", "event_instance", id, err)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	done(w, r, "/events", map[string]any{"deleted": id})
}
