package testutils

import (
	"encoding/base64"
	"fmt"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/healthharmony/assistant/internal/domain/profile"
	"github.com/healthharmony/assistant/internal/domain/user"
)

var (
	allergens   = []string{"Peanuts", "Shellfish", "Pollen", "Latex", "Penicillin", "Sulfa drugs", "Dust mites", "Eggs"}
	medications = []string{"Lisinopril 10mg", "Metformin", "Atorvastatin", "Levothyroxine", "Amlodipine", "Omeprazole", "Sertraline"}
	conditions  = []string{"High Blood Pressure", "Asthma", "Type 2 Diabetes", "Migraine", "Hypothyroidism", "GERD"}
)

// ProfileFactory creates test profiles
type ProfileFactory struct {
	faker *gofakeit.Faker
}

// NewProfileFactory creates a new profile factory with seeded faker
func NewProfileFactory(seed int64) *ProfileFactory {
	return &ProfileFactory{faker: gofakeit.New(seed)}
}

// Snapshot returns a profile with one to three entries per list
func (f *ProfileFactory) Snapshot() profile.Snapshot {
	return profile.Snapshot{
		Allergies:   f.pick(allergens),
		Medications: f.pick(medications),
		Conditions:  f.pick(conditions),
	}
}

func (f *ProfileFactory) pick(pool []string) []string {
	shuffled := make([]string, len(pool))
	copy(shuffled, pool)
	f.faker.ShuffleStrings(shuffled)
	return shuffled[:f.faker.IntRange(1, 3)]
}

// UserFactory creates test users
type UserFactory struct {
	faker *gofakeit.Faker
}

// NewUserFactory creates a new user factory with seeded faker
func NewUserFactory(seed int64) *UserFactory {
	return &UserFactory{faker: gofakeit.New(seed)}
}

// Credentials returns a fresh email, name and password
func (f *UserFactory) Credentials() (email, name, password string) {
	return f.faker.Email(), f.faker.Name(), f.faker.Password(true, true, true, false, false, 12)
}

// User creates a persisted-looking user and returns its password
func (f *UserFactory) User() (*user.User, string) {
	email, name, password := f.Credentials()
	u, err := user.NewUser(email, name, password)
	if err != nil {
		panic(fmt.Sprintf("factory produced invalid user: %v", err))
	}
	return u, password
}

// PhotoDataURI returns a small valid image data URI
func PhotoDataURI(payload string) string {
	return "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString([]byte(payload))
}
