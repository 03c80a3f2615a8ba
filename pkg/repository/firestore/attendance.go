package firestore

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/m-mizutani/goerr/v2"
	"github.com/seiyo-lab/kaoban/pkg/domain/model"
	"github.com/seiyo-lab/kaoban/pkg/domain/types"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

type recordDocument struct {
	ID        string    `firestore:"id"`
	PersonID  string    `firestore:"person_id"`
	Date      string    `firestore:"date"`
	ArrivedAt time.Time `firestore:"arrived_at"`
	Source    string    `firestore:"source"`
	Distance  float64   `firestore:"distance"`
	CreatedAt time.Time `firestore:"created_at"`
}

type departureDocument struct {
	ID        string    `firestore:"id"`
	PersonID  string    `firestore:"person_id"`
	Date      string    `firestore:"date"`
	LeftAt    time.Time `firestore:"left_at"`
	Source    string    `firestore:"source"`
	CreatedAt time.Time `firestore:"created_at"`
}

type attendanceRepository struct {
	client           *firestore.Client
	collectionPrefix string
}

func newAttendanceRepository(client *firestore.Client) *attendanceRepository {
	return &attendanceRepository{
		client:           client,
		collectionPrefix: "",
	}
}

func (r *attendanceRepository) recordsCollection() string {
	if r.collectionPrefix != "" {
		return r.collectionPrefix + "_attendance"
	}
	return "attendance"
}

func (r *attendanceRepository) departuresCollection() string {
	if r.collectionPrefix != "" {
		return r.collectionPrefix + "_departures"
	}
	return "departures"
}

// ledgerDocID makes the (person, date) natural key the document ID, so the
// one-record-per-day invariant is enforced by the database itself.
func ledgerDocID(personID model.PersonID, date types.DateKey) string {
	return fmt.Sprintf("%s_%s", personID, date)
}

func recordToDocument(record *model.AttendanceRecord) *recordDocument {
	return &recordDocument{
		ID:        string(record.ID),
		PersonID:  string(record.PersonID),
		Date:      string(record.Date),
		ArrivedAt: record.ArrivedAt,
		Source:    record.Source,
		Distance:  record.Distance,
		CreatedAt: record.CreatedAt,
	}
}

func recordToModel(doc *recordDocument) *model.AttendanceRecord {
	return &model.AttendanceRecord{
		ID:        model.RecordID(doc.ID),
		PersonID:  model.PersonID(doc.PersonID),
		Date:      types.DateKey(doc.Date),
		ArrivedAt: doc.ArrivedAt,
		Source:    doc.Source,
		Distance:  doc.Distance,
		CreatedAt: doc.CreatedAt,
	}
}

func departureToDocument(departure *model.Departure) *departureDocument {
	return &departureDocument{
		ID:        string(departure.ID),
		PersonID:  string(departure.PersonID),
		Date:      string(departure.Date),
		LeftAt:    departure.LeftAt,
		Source:    departure.Source,
		CreatedAt: departure.CreatedAt,
	}
}

func departureToModel(doc *departureDocument) *model.Departure {
	return &model.Departure{
		ID:        model.DepartureID(doc.ID),
		PersonID:  model.PersonID(doc.PersonID),
		Date:      types.DateKey(doc.Date),
		LeftAt:    doc.LeftAt,
		Source:    doc.Source,
		CreatedAt: doc.CreatedAt,
	}
}

func (r *attendanceRepository) PutRecord(ctx context.Context, record *model.AttendanceRecord) (*model.AttendanceRecord, error) {
	created := *record
	if created.ID == "" {
		created.ID = model.NewRecordID()
	}
	created.CreatedAt = time.Now().UTC().Truncate(time.Microsecond)

	if err := created.Validate(); err != nil {
		return nil, goerr.Wrap(err, "invalid attendance record")
	}

	doc := recordToDocument(&created)

	docRef := r.client.Collection(r.recordsCollection()).Doc(ledgerDocID(created.PersonID, created.Date))
	if _, err := docRef.Create(ctx, doc); err != nil {
		if status.Code(err) == codes.AlreadyExists {
			return nil, goerr.Wrap(ErrAlreadyExists, "attendance record already exists",
				goerr.V("person_id", created.PersonID), goerr.V("date", created.Date))
		}
		return nil, goerr.Wrap(err, "failed to create attendance record")
	}

	return recordToModel(doc), nil
}

func (r *attendanceRepository) GetRecord(ctx context.Context, personID model.PersonID, date types.DateKey) (*model.AttendanceRecord, error) {
	docRef := r.client.Collection(r.recordsCollection()).Doc(ledgerDocID(personID, date))
	doc, err := docRef.Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, goerr.Wrap(ErrNotFound, "attendance record not found",
				goerr.V("person_id", personID), goerr.V("date", date))
		}
		return nil, goerr.Wrap(err, "failed to get attendance record",
			goerr.V("person_id", personID), goerr.V("date", date))
	}

	var rDoc recordDocument
	if err := doc.DataTo(&rDoc); err != nil {
		return nil, goerr.Wrap(err, "failed to unmarshal attendance record")
	}

	return recordToModel(&rDoc), nil
}

func (r *attendanceRepository) ListRecordsByDate(ctx context.Context, date types.DateKey) ([]*model.AttendanceRecord, error) {
	iter := r.client.Collection(r.recordsCollection()).
		Where("date", "==", string(date)).
		OrderBy("arrived_at", firestore.Asc).
		Documents(ctx)
	defer iter.Stop()

	var records []*model.AttendanceRecord
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, goerr.Wrap(err, "failed to iterate attendance records")
		}

		var rDoc recordDocument
		if err := doc.DataTo(&rDoc); err != nil {
			return nil, goerr.Wrap(err, "failed to unmarshal attendance record")
		}

		records = append(records, recordToModel(&rDoc))
	}

	return records, nil
}

func (r *attendanceRepository) ListRecordsByPersonRange(ctx context.Context, personID model.PersonID, from, to types.DateKey) ([]*model.AttendanceRecord, error) {
	iter := r.client.Collection(r.recordsCollection()).
		Where("person_id", "==", string(personID)).
		Where("date", ">=", string(from)).
		Where("date", "<=", string(to)).
		OrderBy("date", firestore.Asc).
		Documents(ctx)
	defer iter.Stop()

	var records []*model.AttendanceRecord
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, goerr.Wrap(err, "failed to iterate attendance records")
		}

		var rDoc recordDocument
		if err := doc.DataTo(&rDoc); err != nil {
			return nil, goerr.Wrap(err, "failed to unmarshal attendance record")
		}

		records = append(records, recordToModel(&rDoc))
	}

	return records, nil
}

func (r *attendanceRepository) PutDeparture(ctx context.Context, departure *model.Departure) (*model.Departure, error) {
	created := *departure
	if created.ID == "" {
		created.ID = model.NewDepartureID()
	}
	created.CreatedAt = time.Now().UTC().Truncate(time.Microsecond)

	if err := created.Validate(); err != nil {
		return nil, goerr.Wrap(err, "invalid departure")
	}

	doc := departureToDocument(&created)

	docRef := r.client.Collection(r.departuresCollection()).Doc(ledgerDocID(created.PersonID, created.Date))
	if _, err := docRef.Create(ctx, doc); err != nil {
		if status.Code(err) == codes.AlreadyExists {
			return nil, goerr.Wrap(ErrAlreadyExists, "departure already exists",
				goerr.V("person_id", created.PersonID), goerr.V("date", created.Date))
		}
		return nil, goerr.Wrap(err, "failed to create departure")
	}

	return departureToModel(doc), nil
}

func (r *attendanceRepository) GetDeparture(ctx context.Context, personID model.PersonID, date types.DateKey) (*model.Departure, error) {
	docRef := r.client.Collection(r.departuresCollection()).Doc(ledgerDocID(personID, date))
	doc, err := docRef.Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, goerr.Wrap(ErrNotFound, "departure not found",
				goerr.V("person_id", personID), goerr.V("date", date))
		}
		return nil, goerr.Wrap(err, "failed to get departure",
			goerr.V("person_id", personID), goerr.V("date", date))
	}

	var dDoc departureDocument
	if err := doc.DataTo(&dDoc); err != nil {
		return nil, goerr.Wrap(err, "failed to unmarshal departure")
	}

	return departureToModel(&dDoc), nil
}

func (r *attendanceRepository) ListDeparturesByDate(ctx context.Context, date types.DateKey) ([]*model.Departure, error) {
	iter := r.client.Collection(r.departuresCollection()).
		Where("date", "==", string(date)).
		OrderBy("left_at", firestore.Asc).
		Documents(ctx)
	defer iter.Stop()

	var departures []*model.Departure
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, goerr.Wrap(err, "failed to iterate departures")
		}

		var dDoc departureDocument
		if err := doc.DataTo(&dDoc); err != nil {
			return nil, goerr.Wrap(err, "failed to unmarshal departure")
		}

		departures = append(departures, departureToModel(&dDoc))
	}

	return departures, nil
}

func (r *attendanceRepository) ListDeparturesByPersonRange(ctx context.Context, personID model.PersonID, from, to types.DateKey) ([]*model.Departure, error) {
	iter := r.client.Collection(r.departuresCollection()).
		Where("person_id", "==", string(personID)).
		Where("date", ">=", string(from)).
		Where("date", "<=", string(to)).
		OrderBy("date", firestore.Asc).
		Documents(ctx)
	defer iter.Stop()

	var departures []*model.Departure
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, goerr.Wrap(err, "failed to iterate departures")
		}

		var dDoc departureDocument
		if err := doc.DataTo(&dDoc); err != nil {
			return nil, goerr.Wrap(err, "failed to unmarshal departure")
		}

		departures = append(departures, departureToModel(&dDoc))
	}

	return departures, nil
}
