package http

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/m-mizutani/goerr/v2"
	"github.com/seiyo-lab/kaoban/pkg/domain/model"
	"github.com/seiyo-lab/kaoban/pkg/usecase"
	"github.com/seiyo-lab/kaoban/pkg/utils/errutil"
)

type personRequest struct {
	Name       string `json:"name"`
	Department string `json:"department"`
	Title      string `json:"title"`
}

type personResponse struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	Department string    `json:"department,omitempty"`
	Title      string    `json:"title,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

type enrollFaceRequest struct {
	Encoding []float64 `json:"encoding"`
	Note     string    `json:"note"`
	Photo    []byte    `json:"photo,omitempty"` // base64 in JSON
}

type faceResponse struct {
	ID        string    `json:"id"`
	PersonID  string    `json:"person_id"`
	Note      string    `json:"note,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

type personStatsResponse struct {
	Samples    int     `json:"samples"`
	MeanSpread float64 `json:"mean_spread"`
	MaxSpread  float64 `json:"max_spread"`
}

type duplicateWarningResponse struct {
	PersonID string  `json:"person_id"`
	Distance float64 `json:"distance"`
}

func createPersonHandler(uc *usecase.UseCases) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req personRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		if req.Name == "" {
			errutil.HandleHTTP(r.Context(), w, goerr.New("name is required"), http.StatusBadRequest)
			return
		}

		person, err := uc.Enroll.RegisterPerson(r.Context(), &model.Person{
			Name:       req.Name,
			Department: req.Department,
			Title:      req.Title,
		})
		if err != nil {
			errutil.HandleHTTP(r.Context(), w, err, http.StatusInternalServerError)
			return
		}

		writeJSON(r.Context(), w, http.StatusCreated, newPersonResponse(person))
	}
}

func listPeopleHandler(uc *usecase.UseCases) http.HandlerFunc {
	type response struct {
		People []*personResponse `json:"people"`
	}

	return func(w http.ResponseWriter, r *http.Request) {
		people, err := uc.Enroll.ListPeople(r.Context())
		if err != nil {
			errutil.HandleHTTP(r.Context(), w, err, http.StatusInternalServerError)
			return
		}

		resp := response{People: make([]*personResponse, len(people))}
		for i, person := range people {
			resp.People[i] = newPersonResponse(person)
		}
		writeJSON(r.Context(), w, http.StatusOK, resp)
	}
}

func getPersonHandler(uc *usecase.UseCases) http.HandlerFunc {
	type response struct {
		*personResponse
		Stats *personStatsResponse `json:"stats"`
	}

	return func(w http.ResponseWriter, r *http.Request) {
		person, err := uc.Enroll.GetPerson(r.Context(), model.PersonID(chi.URLParam(r, "id")))
		if err != nil {
			errutil.HandleHTTP(r.Context(), w, err, personStatus(err))
			return
		}

		stats, err := uc.Enroll.PersonStats(r.Context(), person.ID)
		if err != nil {
			errutil.HandleHTTP(r.Context(), w, err, http.StatusInternalServerError)
			return
		}

		writeJSON(r.Context(), w, http.StatusOK, response{
			personResponse: newPersonResponse(person),
			Stats: &personStatsResponse{
				Samples:    stats.Samples,
				MeanSpread: stats.MeanSpread,
				MaxSpread:  stats.MaxSpread,
			},
		})
	}
}

func deletePersonHandler(uc *usecase.UseCases) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := uc.Enroll.DeletePerson(r.Context(), model.PersonID(chi.URLParam(r, "id"))); err != nil {
			errutil.HandleHTTP(r.Context(), w, err, personStatus(err))
			return
		}
		writeJSON(r.Context(), w, http.StatusOK, successResponse{Success: true})
	}
}

func enrollFaceHandler(uc *usecase.UseCases) http.HandlerFunc {
	type response struct {
		Face    *faceResponse             `json:"face"`
		Warning *duplicateWarningResponse `json:"warning,omitempty"`
	}

	return func(w http.ResponseWriter, r *http.Request) {
		var req enrollFaceRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		if len(req.Encoding) == 0 {
			errutil.HandleHTTP(r.Context(), w, goerr.New("encoding is required"), http.StatusBadRequest)
			return
		}

		personID := model.PersonID(chi.URLParam(r, "id"))
		sample, warning, err := uc.Enroll.AddFaceSample(r.Context(), personID, req.Encoding, req.Note, req.Photo)
		if err != nil {
			errutil.HandleHTTP(r.Context(), w, err, enrollStatus(err))
			return
		}

		resp := response{
			Face: &faceResponse{
				ID:        sample.ID.String(),
				PersonID:  sample.PersonID.String(),
				Note:      sample.Note,
				CreatedAt: sample.CreatedAt,
			},
		}
		if warning != nil {
			resp.Warning = &duplicateWarningResponse{
				PersonID: warning.PersonID.String(),
				Distance: warning.Distance,
			}
		}
		writeJSON(r.Context(), w, http.StatusCreated, resp)
	}
}

func personStatus(err error) int {
	if errors.Is(err, usecase.ErrPersonNotFound) {
		return http.StatusNotFound
	}
	return http.StatusInternalServerError
}

func enrollStatus(err error) int {
	switch {
	case errors.Is(err, usecase.ErrPersonNotFound):
		return http.StatusNotFound
	case errors.Is(err, model.ErrInvalidEncoding):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func newPersonResponse(person *model.Person) *personResponse {
	return &personResponse{
		ID:         person.ID.String(),
		Name:       person.Name,
		Department: person.Department,
		Title:      person.Title,
		CreatedAt:  person.CreatedAt,
	}
}
