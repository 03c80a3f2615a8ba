package http

import (
	"errors"
	"io"
	"math"
	"net/http"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/seiyo-lab/kaoban/pkg/domain/interfaces"
	"github.com/seiyo-lab/kaoban/pkg/domain/model"
	"github.com/seiyo-lab/kaoban/pkg/domain/types"
	"github.com/seiyo-lab/kaoban/pkg/service/ledger"
	"github.com/seiyo-lab/kaoban/pkg/usecase"
	"github.com/seiyo-lab/kaoban/pkg/utils/errutil"
)

// maxImageBytes bounds an uploaded capture frame.
const maxImageBytes = 10 << 20

const (
	modeArrival   = "arrival"
	modeDeparture = "departure"
)

type detectionRequest struct {
	Encoding   []float64 `json:"encoding"`
	CapturedAt time.Time `json:"captured_at"`
	Source     string    `json:"source"`
	Mode       string    `json:"mode"`
}

func (x *detectionRequest) validate() error {
	if len(x.Encoding) == 0 {
		return goerr.New("encoding is required")
	}
	if x.CapturedAt.IsZero() {
		return goerr.New("captured_at is required")
	}
	switch x.Mode {
	case "", modeArrival, modeDeparture:
		return nil
	default:
		return goerr.New("mode must be arrival or departure", goerr.V("mode", x.Mode))
	}
}

type outcomeResponse struct {
	Kind      string             `json:"kind"`
	PersonID  string             `json:"person_id,omitempty"`
	Distance  *float64           `json:"distance"`
	Record    *recordResponse    `json:"record,omitempty"`
	Departure *departureResponse `json:"departure,omitempty"`
}

type recordResponse struct {
	ID        string    `json:"id"`
	PersonID  string    `json:"person_id"`
	Date      string    `json:"date"`
	ArrivedAt time.Time `json:"arrived_at"`
	Source    string    `json:"source"`
}

type departureResponse struct {
	ID       string    `json:"id"`
	PersonID string    `json:"person_id"`
	Date     string    `json:"date"`
	LeftAt   time.Time `json:"left_at"`
	Source   string    `json:"source"`
}

func detectionHandler(uc *usecase.UseCases) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req detectionRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		if err := req.validate(); err != nil {
			errutil.HandleHTTP(r.Context(), w, err, http.StatusBadRequest)
			return
		}

		resp, err := processDetection(r, uc, &req, req.Encoding)
		if err != nil {
			errutil.HandleHTTP(r.Context(), w, err, pipelineStatus(err))
			return
		}
		writeJSON(r.Context(), w, http.StatusOK, resp)
	}
}

// detectionImageHandler accepts a multipart capture frame, obtains its
// encodings from the external encoder service, and runs each through the
// pipeline. One frame may contain several faces.
func detectionImageHandler(uc *usecase.UseCases, encoder interfaces.Encoder) http.HandlerFunc {
	type response struct {
		Outcomes []*outcomeResponse `json:"outcomes"`
	}

	return func(w http.ResponseWriter, r *http.Request) {
		if encoder == nil {
			writeJSON(r.Context(), w, http.StatusNotImplemented, errorResponse{Error: "no encoder service configured"})
			return
		}

		if err := r.ParseMultipartForm(maxImageBytes); err != nil {
			errutil.HandleHTTP(r.Context(), w, goerr.Wrap(err, "failed to parse multipart form"), http.StatusBadRequest)
			return
		}

		req := detectionRequest{
			Source: r.FormValue("source"),
			Mode:   r.FormValue("mode"),
		}
		if raw := r.FormValue("captured_at"); raw != "" {
			at, err := time.Parse(time.RFC3339, raw)
			if err != nil {
				errutil.HandleHTTP(r.Context(), w, goerr.Wrap(err, "invalid captured_at"), http.StatusBadRequest)
				return
			}
			req.CapturedAt = at
		} else {
			req.CapturedAt = time.Now()
		}
		switch req.Mode {
		case "", modeArrival, modeDeparture:
		default:
			errutil.HandleHTTP(r.Context(), w, goerr.New("mode must be arrival or departure", goerr.V("mode", req.Mode)), http.StatusBadRequest)
			return
		}

		image, err := readImageFile(r)
		if err != nil {
			errutil.HandleHTTP(r.Context(), w, err, http.StatusBadRequest)
			return
		}

		encodings, err := encoder.Encode(r.Context(), image)
		if err != nil {
			errutil.HandleHTTP(r.Context(), w, goerr.Wrap(err, "encoder service failed"), http.StatusBadGateway)
			return
		}

		resp := response{Outcomes: make([]*outcomeResponse, 0, len(encodings))}
		for _, encoding := range encodings {
			out, err := processDetection(r, uc, &req, encoding)
			if err != nil {
				errutil.HandleHTTP(r.Context(), w, err, pipelineStatus(err))
				return
			}
			resp.Outcomes = append(resp.Outcomes, out)
		}
		writeJSON(r.Context(), w, http.StatusOK, resp)
	}
}

func readImageFile(r *http.Request) ([]byte, error) {
	file, header, err := r.FormFile("image")
	if err != nil {
		return nil, goerr.Wrap(err, "image file is required")
	}
	defer file.Close()

	if header.Size > maxImageBytes {
		return nil, goerr.New("image exceeds size limit", goerr.V("size", header.Size))
	}

	image := make([]byte, header.Size)
	if _, err := io.ReadFull(file, image); err != nil {
		return nil, goerr.Wrap(err, "failed to read image file")
	}
	return image, nil
}

func processDetection(r *http.Request, uc *usecase.UseCases, req *detectionRequest, encoding types.Encoding) (*outcomeResponse, error) {
	detection := &model.Detection{
		Encoding:   encoding,
		CapturedAt: req.CapturedAt,
		Source:     req.Source,
	}

	if req.Mode == modeDeparture {
		outcome, err := uc.Attendance.ProcessDeparture(r.Context(), detection)
		if err != nil {
			return nil, err
		}
		return newDepartureOutcomeResponse(outcome), nil
	}

	outcome, err := uc.Attendance.ProcessDetection(r.Context(), detection)
	if err != nil {
		return nil, err
	}
	return newOutcomeResponse(outcome), nil
}

// pipelineStatus maps pipeline errors to HTTP status codes. A ledger write
// failure is a 502 so the capture device retries the same detection;
// malformed probes are the client's fault.
func pipelineStatus(err error) int {
	switch {
	case errors.Is(err, ledger.ErrLedgerWrite):
		return http.StatusBadGateway
	case errors.Is(err, model.ErrInvalidEncoding), errors.Is(err, model.ErrDimensionMismatch):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func newOutcomeResponse(outcome model.Outcome) *outcomeResponse {
	return &outcomeResponse{
		Kind:     outcome.Kind.String(),
		PersonID: outcome.PersonID.String(),
		Distance: finiteDistance(outcome.Distance),
		Record:   newRecordResponse(outcome.Record),
	}
}

func newDepartureOutcomeResponse(outcome model.DepartureOutcome) *outcomeResponse {
	return &outcomeResponse{
		Kind:      outcome.Kind.String(),
		PersonID:  outcome.PersonID.String(),
		Distance:  finiteDistance(outcome.Distance),
		Departure: newDepartureResponse(outcome.Departure),
	}
}

func newRecordResponse(record *model.AttendanceRecord) *recordResponse {
	if record == nil {
		return nil
	}
	return &recordResponse{
		ID:        record.ID.String(),
		PersonID:  record.PersonID.String(),
		Date:      record.Date.String(),
		ArrivedAt: record.ArrivedAt,
		Source:    record.Source,
	}
}

func newDepartureResponse(departure *model.Departure) *departureResponse {
	if departure == nil {
		return nil
	}
	return &departureResponse{
		ID:       departure.ID.String(),
		PersonID: departure.PersonID.String(),
		Date:     departure.Date.String(),
		LeftAt:   departure.LeftAt,
		Source:   departure.Source,
	}
}

// finiteDistance keeps +Inf (the empty-gallery diagnostic) out of the JSON
// encoder, which cannot represent it.
func finiteDistance(distance float64) *float64 {
	if math.IsInf(distance, 0) || math.IsNaN(distance) {
		return nil
	}
	return &distance
}
