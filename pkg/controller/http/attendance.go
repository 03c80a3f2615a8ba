package http

import (
	"net/http"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/seiyo-lab/kaoban/pkg/domain/model"
	"github.com/seiyo-lab/kaoban/pkg/domain/types"
	"github.com/seiyo-lab/kaoban/pkg/usecase"
	"github.com/seiyo-lab/kaoban/pkg/utils/errutil"
)

type reportRowResponse struct {
	Person      *personResponse    `json:"person"` // null when deleted after the record
	Record      *recordResponse    `json:"record"`
	Departure   *departureResponse `json:"departure,omitempty"`
	PresenceSec int64              `json:"presence_sec,omitempty"`
}

func dailyReportHandler(uc *usecase.UseCases) http.HandlerFunc {
	type response struct {
		Date string               `json:"date"`
		Rows []*reportRowResponse `json:"rows"`
	}

	return func(w http.ResponseWriter, r *http.Request) {
		raw := r.URL.Query().Get("date")
		if raw == "" {
			errutil.HandleHTTP(r.Context(), w, goerr.New("date query parameter is required"), http.StatusBadRequest)
			return
		}
		date, err := types.ParseDateKey(raw)
		if err != nil {
			errutil.HandleHTTP(r.Context(), w, err, http.StatusBadRequest)
			return
		}

		rows, err := uc.Report.Daily(r.Context(), date)
		if err != nil {
			errutil.HandleHTTP(r.Context(), w, err, http.StatusInternalServerError)
			return
		}

		writeJSON(r.Context(), w, http.StatusOK, response{
			Date: date.String(),
			Rows: newReportRows(rows),
		})
	}
}

func activeReportHandler(uc *usecase.UseCases) http.HandlerFunc {
	type response struct {
		At   time.Time            `json:"at"`
		Rows []*reportRowResponse `json:"rows"`
	}

	return func(w http.ResponseWriter, r *http.Request) {
		at := time.Now()
		if raw := r.URL.Query().Get("at"); raw != "" {
			parsed, err := time.Parse(time.RFC3339, raw)
			if err != nil {
				errutil.HandleHTTP(r.Context(), w, goerr.Wrap(err, "invalid at parameter"), http.StatusBadRequest)
				return
			}
			at = parsed
		}

		rows, err := uc.Report.Active(r.Context(), at)
		if err != nil {
			errutil.HandleHTTP(r.Context(), w, err, http.StatusInternalServerError)
			return
		}

		writeJSON(r.Context(), w, http.StatusOK, response{
			At:   at,
			Rows: newReportRows(rows),
		})
	}
}

func rangeReportHandler(uc *usecase.UseCases) http.HandlerFunc {
	type response struct {
		PersonID string               `json:"person_id"`
		From     string               `json:"from"`
		To       string               `json:"to"`
		Rows     []*reportRowResponse `json:"rows"`
	}

	return func(w http.ResponseWriter, r *http.Request) {
		personID := model.PersonID(r.URL.Query().Get("person"))
		if personID == "" {
			errutil.HandleHTTP(r.Context(), w, goerr.New("person query parameter is required"), http.StatusBadRequest)
			return
		}
		from, err := types.ParseDateKey(r.URL.Query().Get("from"))
		if err != nil {
			errutil.HandleHTTP(r.Context(), w, err, http.StatusBadRequest)
			return
		}
		to, err := types.ParseDateKey(r.URL.Query().Get("to"))
		if err != nil {
			errutil.HandleHTTP(r.Context(), w, err, http.StatusBadRequest)
			return
		}
		if to.Before(from) {
			errutil.HandleHTTP(r.Context(), w, goerr.New("from must not be after to"), http.StatusBadRequest)
			return
		}

		rows, err := uc.Report.PersonRange(r.Context(), personID, from, to)
		if err != nil {
			errutil.HandleHTTP(r.Context(), w, err, http.StatusInternalServerError)
			return
		}

		writeJSON(r.Context(), w, http.StatusOK, response{
			PersonID: personID.String(),
			From:     from.String(),
			To:       to.String(),
			Rows:     newReportRows(rows),
		})
	}
}

func newReportRows(rows []*model.DailyReportRow) []*reportRowResponse {
	out := make([]*reportRowResponse, len(rows))
	for i, row := range rows {
		resp := &reportRowResponse{
			Record:      newRecordResponse(row.Record),
			Departure:   newDepartureResponse(row.Departure),
			PresenceSec: int64(row.Presence().Seconds()),
		}
		if row.Person != nil {
			resp.Person = newPersonResponse(row.Person)
		}
		out[i] = resp
	}
	return out
}
