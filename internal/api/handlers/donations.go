package handlers

import (
	"context"
	"net/http"
	"net/url"
	"strconv"

	"github.com/outreach-portal/server/internal/api/middleware"
	"github.com/outreach-portal/server/internal/api/pagination"
	"github.com/outreach-portal/server/internal/api/render"
	"github.com/outreach-portal/server/internal/auth"
	"github.com/outreach-portal/server/internal/domain/donations"
	"github.com/outreach-portal/server/internal/domain/users"
	"github.com/outreach-portal/server/internal/validation"
)

type DonationService interface {
	List(ctx context.Context, actor auth.Identity, opts donations.ListOptions) (donations.ListResult, error)
	Get(ctx context.Context, id int64) (*donations.Donation, error)
	Record(ctx context.Context, actor auth.Identity, p donations.Params) (int64, error)
	Update(ctx context.Context, id int64, p donations.Params) error
	Delete(ctx context.Context, id int64) error
}

// UserPicker lists the accounts offered in owner selects.
type UserPicker interface {
	ListAll(ctx context.Context) ([]users.User, error)
}

type DonationsHandler struct {
	*Pages
	service DonationService
	users   UserPicker
}

func NewDonationsHandler(pages *Pages, service DonationService, picker UserPicker) *DonationsHandler {
	return &DonationsHandler{Pages: pages, service: service, users: picker}
}

// List handles GET /donations.
func (h *DonationsHandler) List(w http.ResponseWriter, r *http.Request) {
	result, err := h.service.List(r.Context(), actor(r), donations.ListOptions{
		Filters: filters(r),
		Page:    pagination.ParsePage(r),
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if middleware.WantsJSON(r) {
		writeJSON(w, http.StatusOK, map[string]any{"donations": result.Donations, "total": result.Total, "page": result.Page})
		return
	}
	page := h.page(r, "Donations", "donations")
	page.Data["Donations"] = result.Donations
	page.Data["Search"] = r.URL.Query().Get("search")
	page.Data["Page"] = pagination.New(r, result.Page, result.PageSize, result.Total)
	h.html(w, r, http.StatusOK, "donations.html", page)
}

// editorPage loads the donor picker for administrators.
func (h *DonationsHandler) editorPage(w http.ResponseWriter, r *http.Request, title string) (render.Page, bool) {
	page := h.page(r, title, "donations")
	if actor(r).IsAdmin() {
		donors, err := h.users.ListAll(r.Context())
		if err != nil {
			h.fail(w, r, err)
			return page, false
		}
		page.Data["Donors"] = donors
	}
	return page, true
}

func donationParams(r *http.Request) (donations.Params, validation.Errors) {
	errs := validation.Errors{}
	p := donations.Params{
		UserID: formInt64(errs, r, "user_id"),
		Date:   validation.OptionalDate(errs, "donation_date", r.PostFormValue("donation_date")),
	}
	if raw := formString(r, "amount"); raw == "" {
		errs.Add("amount", "This field is required")
	} else if amount, err := strconv.ParseFloat(raw, 64); err != nil {
		errs.Add("amount", "Must be a number")
	} else {
		p.Amount = amount
	}
	return p, errs
}

func donationValues(d *donations.Donation) url.Values {
	v := url.Values{}
	v.Set("user_id", strconv.FormatInt(d.UserID, 10))
	v.Set("amount", strconv.FormatFloat(d.Amount, 'f', 2, 64))
	if d.Date != nil {
		v.Set("donation_date", d.Date.Format("2006-01-02"))
	}
	return v
}

// AddPage handles GET /donations/add.
func (h *DonationsHandler) AddPage(w http.ResponseWriter, r *http.Request) {
	page, ok := h.editorPage(w, r, "Add donation")
	if !ok {
		return
	}
	h.html(w, r, http.StatusOK, "donation_form.html", page)
}

// Add handles POST /donations/add. Participants always donate as
// themselves.
func (h *DonationsHandler) Add(w http.ResponseWriter, r *http.Request) {
	if !parseForm(w, r, h.Pages) {
		return
	}
	page, ok := h.editorPage(w, r, "Add donation")
	if !ok {
		return
	}
	params, errs := donationParams(r)
	if err := errs.Err(); err != nil {
		h.formPage(w, r, http.StatusBadRequest, "donation_form.html", page, errs)
		return
	}

	who := actor(r)
	id, err := h.service.Record(r.Context(), who, params)
	if who.IsAdmin() {
		h.record(r, "donation.create", "donation", id, err)
	}
	if err != nil {
		h.rejectForm(w, r, err, "donation_form.html", page)
		return
	}
	done(w, r, "/donations", map[string]any{"donation_id": id})
}

// EditPage handles GET /donations/{id}/edit.
func (h *DonationsHandler) EditPage(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		h.notFound(w, r)
		return
	}
	d, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	page, ok := h.editorPage(w, r, "Edit donation")
	if !ok {
		return
	}
	page.Data["Donation"] = d
	page.Form = donationValues(d)
	h.html(w, r, http.StatusOK, "donation_form.html", page)
}

// Edit handles POST /donations/{id}/edit.
func (h *DonationsHandler) Edit(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		h.notFound(w, r)
		return
	}
	d, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if !parseForm(w, r, h.Pages) {
		return
	}
	page, ok := h.editorPage(w, r, "Edit donation")
	if !ok {
		return
	}
	page.Data["Donation"] = d
	params, errs := donationParams(r)
	if err := errs.Err(); err != nil {
		h.formPage(w, r, http.StatusBadRequest, "donation_form.html", page, errs)
		return
	}

	err = h.service.Update(r.Context(), id, params)
	h.record(r, "donation.update", "donation", id, err)
	if err != nil {
		h.rejectForm(w, r, err, "donation_form.html", page)
		return
	}
	done(w, r, "/donations", map[string]any{"donation_id": id})
}

// Delete handles POST /donations/{id}/delete.
func (h *DonationsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		h.notFound(w, r)
		return
	}
	err := h.service.Delete(r.Context(), id)
	h.record(r, "donation.delete", "donation", id, err)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	done(w, r, "/donations", map[string]any{"deleted": id})
}
