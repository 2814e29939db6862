package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/clinicore/clinicore/internal/domain/appointment"
	"github.com/clinicore/clinicore/internal/domain/identity"
	"github.com/clinicore/clinicore/internal/domain/messaging"
	"github.com/clinicore/clinicore/internal/domain/prediction"
	"github.com/clinicore/clinicore/internal/domain/records"
	"github.com/clinicore/clinicore/internal/platform/lock"
	"github.com/clinicore/clinicore/internal/policy"
)

// demoPassword is shared by every seeded account.
const demoPassword = "Password123!"

func seed(ctx context.Context, pool *pgxpool.Pool) error {
	identitySvc := identity.NewService(
		identity.NewAdminRepoPG(pool),
		identity.NewDoctorRepoPG(pool),
		identity.NewClientRepoPG(pool),
	)
	engine := policy.NewEngine(identitySvc)
	appointmentSvc := appointment.NewService(appointment.NewRepoPG(pool), engine, identitySvc, lock.Noop())
	recordsSvc := records.NewService(records.NewStorePG(pool), engine, identitySvc)
	messagingSvc := messaging.NewService(messaging.NewRepoPG(pool), engine, identitySvc)
	predictionSvc := prediction.NewService(prediction.NewRepoPG(pool), engine, identitySvc)

	gofakeit.Seed(42)

	admin := &identity.Admin{Username: "admin", Email: ptr("admin@clinicore.local")}
	if err := identitySvc.CreateAdmin(ctx, admin, demoPassword); err != nil {
		return fmt.Errorf("seed admin: %w", err)
	}
	adminP := admin.Principal()

	for d := 0; d < 3; d++ {
		doctor := &identity.Doctor{
			Username:       username(),
			FirstName:      ptr(gofakeit.FirstName()),
			LastName:       ptr(gofakeit.LastName()),
			Email:          ptr(gofakeit.Email()),
			Specialization: ptr(gofakeit.RandomString([]string{"Cardiology", "Psychiatry", "General Practice"})),
			LicenseNumber:  ptr(gofakeit.Numerify("LIC-########")),
		}
		if err := identitySvc.CreateDoctor(ctx, doctor, demoPassword); err != nil {
			return fmt.Errorf("seed doctor: %w", err)
		}
		doctorP := doctor.Principal()

		for c := 0; c < 4; c++ {
			dob := gofakeit.DateRange(
				time.Date(1950, 1, 1, 0, 0, 0, 0, time.UTC),
				time.Date(2005, 1, 1, 0, 0, 0, 0, time.UTC),
			)
			client := &identity.Client{
				Username:         username(),
				FirstName:        ptr(gofakeit.FirstName()),
				LastName:         ptr(gofakeit.LastName()),
				Email:            ptr(gofakeit.Email()),
				DateOfBirth:      &dob,
				AssignedDoctorID: &doctor.ID,
			}
			if err := identitySvc.CreateClient(ctx, client, demoPassword); err != nil {
				return fmt.Errorf("seed client: %w", err)
			}
			clientP := client.Principal()

			if err := seedChart(ctx, doctorP, clientP, adminP, recordsSvc); err != nil {
				return err
			}

			day := time.Now().UTC().AddDate(0, 0, gofakeit.Number(1, 30)).Truncate(24 * time.Hour)
			start := day.Add(time.Duration(9+c*2) * time.Hour)
			appt := &appointment.Appointment{
				Title:     "Follow-up consultation",
				Date:      day,
				StartTime: start,
				EndTime:   start.Add(time.Hour),
				Location:  ptr("Room " + gofakeit.Numerify("##")),
				ClientID:  client.ID,
				DoctorID:  doctor.ID,
			}
			if err := appointmentSvc.Create(ctx, doctorP, appt); err != nil {
				return fmt.Errorf("seed appointment: %w", err)
			}

			if _, err := messagingSvc.Send(ctx, doctorP, client.Username, gofakeit.Sentence(8)); err != nil {
				return fmt.Errorf("seed message: %w", err)
			}

			pred := &prediction.Prediction{
				ClientID: client.ID,
				Model:    "risk-screen-v2",
				Output:   map[string]any{"risk": gofakeit.Float64Range(0, 1)},
			}
			if err := predictionSvc.Create(ctx, adminP, pred); err != nil {
				return fmt.Errorf("seed prediction: %w", err)
			}
			if c%2 == 0 {
				if _, err := predictionSvc.Review(ctx, doctorP, pred.ID, gofakeit.Sentence(6)); err != nil {
					return fmt.Errorf("seed review: %w", err)
				}
			}
		}
	}

	fmt.Println("Seeded demo data. Log in with username 'admin' and the demo password.")
	return nil
}

func seedChart(ctx context.Context, doctorP, clientP, adminP policy.Principal, svc *records.Service) error {
	entries := []struct {
		author policy.Principal
		kind   policy.ResourceKind
		title  string
	}{
		{doctorP, policy.KindDiagnosis, gofakeit.RandomString([]string{"Hypertension", "Type 2 diabetes", "Asthma"})},
		{doctorP, policy.KindPrescription, gofakeit.RandomString([]string{"Lisinopril 10mg", "Metformin 500mg"})},
		{clientP, policy.KindSymptom, gofakeit.RandomString([]string{"Headache", "Fatigue", "Dizziness"})},
		{clientP, policy.KindAllergy, gofakeit.RandomString([]string{"Penicillin", "Peanuts", "Latex"})},
		{adminP, policy.KindLabResult, "Blood panel"},
	}
	for _, e := range entries {
		r := &records.ClinicalRecord{
			Kind:     e.kind,
			ClientID: clientP.ID,
			Title:    e.title,
			Notes:    ptr(gofakeit.Sentence(10)),
		}
		if err := svc.Create(ctx, e.author, r); err != nil {
			return fmt.Errorf("seed %s: %w", e.kind, err)
		}
	}
	return nil
}

func username() string {
	return strings.ToLower(gofakeit.Username() + gofakeit.DigitN(3))
}

func ptr[T any](v T) *T { return &v }
