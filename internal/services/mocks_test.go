package services

import (
	"context"
	"time"

	"github.com/jdcastro/treasury/internal/models"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
)

// MockConfigurationRepository is a mock implementation of
// repository.ConfigurationRepository for testing.
type MockConfigurationRepository struct {
	mock.Mock
}

func (m *MockConfigurationRepository) Create(ctx context.Context, rec *models.ConfigurationRecord) (*models.ConfigurationRecord, error) {
	args := m.Called(ctx, rec)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.ConfigurationRecord), args.Error(1)
}

func (m *MockConfigurationRepository) Update(ctx context.Context, rec *models.ConfigurationRecord) (*models.ConfigurationRecord, error) {
	args := m.Called(ctx, rec)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.ConfigurationRecord), args.Error(1)
}

func (m *MockConfigurationRepository) FindActive(ctx context.Context, kind models.ConfigKind, key string, asOf time.Time) ([]models.ConfigurationRecord, error) {
	args := m.Called(ctx, kind, key, asOf)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.ConfigurationRecord), args.Error(1)
}

func (m *MockConfigurationRepository) FindActiveBand(ctx context.Context, kind models.ConfigKind, key string, value decimal.Decimal, asOf time.Time) ([]models.ConfigurationRecord, error) {
	args := m.Called(ctx, kind, key, value, asOf)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.ConfigurationRecord), args.Error(1)
}

func (m *MockConfigurationRepository) List(ctx context.Context, kind models.ConfigKind) ([]models.ConfigurationRecord, error) {
	args := m.Called(ctx, kind)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.ConfigurationRecord), args.Error(1)
}

func (m *MockConfigurationRepository) Delete(ctx context.Context, id int64) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

// MockConfigResolver is a mock implementation of ConfigResolver for
// testing services that consume resolved configuration.
type MockConfigResolver struct {
	mock.Mock
}

func (m *MockConfigResolver) Resolve(ctx context.Context, kind models.ConfigKind, key string, asOf time.Time) (*models.ConfigurationRecord, error) {
	args := m.Called(ctx, kind, key, asOf)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.ConfigurationRecord), args.Error(1)
}

func (m *MockConfigResolver) ResolveBand(ctx context.Context, kind models.ConfigKind, key string, value decimal.Decimal, asOf time.Time) (*models.ConfigurationRecord, error) {
	args := m.Called(ctx, kind, key, value, asOf)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.ConfigurationRecord), args.Error(1)
}

func (m *MockConfigResolver) CreateConfiguration(ctx context.Context, rec *models.ConfigurationRecord) (*models.ConfigurationRecord, error) {
	args := m.Called(ctx, rec)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.ConfigurationRecord), args.Error(1)
}

func (m *MockConfigResolver) UpdateConfiguration(ctx context.Context, rec *models.ConfigurationRecord) (*models.ConfigurationRecord, error) {
	args := m.Called(ctx, rec)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.ConfigurationRecord), args.Error(1)
}

func (m *MockConfigResolver) DeleteConfiguration(ctx context.Context, id int64) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockConfigResolver) ListConfigurations(ctx context.Context, kind models.ConfigKind) ([]models.ConfigurationRecord, error) {
	args := m.Called(ctx, kind)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.ConfigurationRecord), args.Error(1)
}

// MockAssessmentRepository is a mock implementation of
// repository.AssessmentRepository for testing.
type MockAssessmentRepository struct {
	mock.Mock
}

func (m *MockAssessmentRepository) GetRegistrationStatus(ctx context.Context, registrationID int64) (models.RegistrationStatus, error) {
	args := m.Called(ctx, registrationID)
	return args.Get(0).(models.RegistrationStatus), args.Error(1)
}

func (m *MockAssessmentRepository) AdvanceRegistrationStatus(ctx context.Context, registrationID int64, status models.RegistrationStatus) error {
	args := m.Called(ctx, registrationID, status)
	return args.Error(0)
}

func (m *MockAssessmentRepository) UpsertLand(ctx context.Context, land *models.LandAssessment) (*models.LandAssessment, error) {
	args := m.Called(ctx, land)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.LandAssessment), args.Error(1)
}

func (m *MockAssessmentRepository) UpsertBuilding(ctx context.Context, building *models.BuildingAssessment) (*models.BuildingAssessment, error) {
	args := m.Called(ctx, building)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.BuildingAssessment), args.Error(1)
}

func (m *MockAssessmentRepository) UpsertTotals(ctx context.Context, totals *models.PropertyTotals) (*models.PropertyTotals, error) {
	args := m.Called(ctx, totals)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.PropertyTotals), args.Error(1)
}

func (m *MockAssessmentRepository) GetTotals(ctx context.Context, registrationID int64) (*models.PropertyTotals, error) {
	args := m.Called(ctx, registrationID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.PropertyTotals), args.Error(1)
}

func (m *MockAssessmentRepository) GetLand(ctx context.Context, registrationID int64) (*models.LandAssessment, error) {
	args := m.Called(ctx, registrationID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.LandAssessment), args.Error(1)
}

func (m *MockAssessmentRepository) GetBuilding(ctx context.Context, registrationID int64) (*models.BuildingAssessment, error) {
	args := m.Called(ctx, registrationID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.BuildingAssessment), args.Error(1)
}

func (m *MockAssessmentRepository) AssignDeclarations(ctx context.Context, registrationID int64, landTD, buildingTD string) error {
	args := m.Called(ctx, registrationID, landTD, buildingTD)
	return args.Error(0)
}

// MockBusinessRepository is a mock implementation of
// repository.BusinessRepository for testing.
type MockBusinessRepository struct {
	mock.Mock
}

func (m *MockBusinessRepository) GetProfile(ctx context.Context, permitID int64) (*models.BusinessTaxProfile, error) {
	args := m.Called(ctx, permitID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.BusinessTaxProfile), args.Error(1)
}

// MockInstallmentRepository is a mock implementation of
// repository.InstallmentRepository for testing.
type MockInstallmentRepository struct {
	mock.Mock
}

func (m *MockInstallmentRepository) InsertIfAbsent(ctx context.Context, inst *models.Installment) (bool, error) {
	args := m.Called(ctx, inst)
	return args.Bool(0), args.Error(1)
}

func (m *MockInstallmentRepository) Get(ctx context.Context, id int64) (*models.Installment, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Installment), args.Error(1)
}

func (m *MockInstallmentRepository) ListByOwnerYear(ctx context.Context, kind models.OwnerKind, ownerID int64, year int) ([]models.Installment, error) {
	args := m.Called(ctx, kind, ownerID, year)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Installment), args.Error(1)
}

func (m *MockInstallmentRepository) ListAccruable(ctx context.Context, kind models.OwnerKind, asOf time.Time) ([]models.Installment, error) {
	args := m.Called(ctx, kind, asOf)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Installment), args.Error(1)
}

func (m *MockInstallmentRepository) ApplyPenalty(ctx context.Context, id int64, daysLate int, penalty, percentUsed decimal.Decimal) (bool, error) {
	args := m.Called(ctx, id, daysLate, penalty, percentUsed)
	return args.Bool(0), args.Error(1)
}

func (m *MockInstallmentRepository) MarkPaid(ctx context.Context, id int64, receiptNumber string, paymentDate time.Time) (bool, error) {
	args := m.Called(ctx, id, receiptNumber, paymentDate)
	return args.Bool(0), args.Error(1)
}

func (m *MockInstallmentRepository) AppendRunLog(ctx context.Context, log *models.PenaltyRunLog) error {
	args := m.Called(ctx, log)
	return args.Error(0)
}
