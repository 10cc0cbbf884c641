package helpers

import (
	"context"
	"fmt"
	"reflect"
	"sync/atomic"
	"testing"
	"time"

	"github.com/afriproperty/payment-gateway/internal/repository"
	"github.com/afriproperty/payment-gateway/pkg/pg"
	"github.com/afriproperty/payment-gateway/pkg/redis"
	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func SetupTestDB(t *testing.T) *pg.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)

	err = db.AutoMigrate(
		&repository.InvestorEntity{},
		&repository.InvestmentEntity{},
		&repository.RentalClaimEntity{},
		&repository.PaymentRequestEntity{},
		&repository.NotificationEntity{},
	)
	require.NoError(t, err)

	pgDB := &pg.DB{}
	pgDBValue := reflect.ValueOf(pgDB).Elem()

	readField := pgDBValue.FieldByName("read")
	writeField := pgDBValue.FieldByName("write")

	readField = reflect.NewAt(readField.Type(), readField.Addr().UnsafePointer()).Elem()
	writeField = reflect.NewAt(writeField.Type(), writeField.Addr().UnsafePointer()).Elem()

	readField.Set(reflect.ValueOf(db))
	writeField.Set(reflect.ValueOf(db))

	return pgDB
}

func SetupTestRedis(t *testing.T) (*miniredis.Miniredis, redis.RedisAdapter) {
	mr, err := miniredis.Run()
	require.NoError(t, err)

	// Adapters are cached globally by connection name, so each test gets
	// its own to avoid reusing a connection to a closed miniredis.
	connName := fmt.Sprintf("test-%d", time.Now().UnixNano())
	adapter, err := redis.NewRedisAdapter(connName, "", &goredis.UniversalOptions{
		Addrs: []string{mr.Addr()},
	})
	require.NoError(t, err)

	return mr, adapter
}

func CreateTestInvestor(t *testing.T, db *pg.DB, id int64, apiKey string) *repository.InvestorEntity {
	ctx := context.Background()
	investor := &repository.InvestorEntity{
		ID:       id,
		FullName: "Test Investor",
		Email:    apiKey + "@example.com",
		Phone:    "254712345678",
		APIKey:   apiKey,
	}
	err := db.Write(ctx).Create(investor).Error
	require.NoError(t, err)
	return investor
}

func CreateTestInvestment(t *testing.T, db *pg.DB, investorID, propertyID int64, amount float64) *repository.InvestmentEntity {
	ctx := context.Background()
	investment := &repository.InvestmentEntity{
		InvestorID:    investorID,
		PropertyID:    propertyID,
		Amount:        amount,
		PaymentStatus: "pending",
		CreatedAt:     time.Now(),
	}
	err := db.Write(ctx).Create(investment).Error
	require.NoError(t, err)
	return investment
}

func CreateTestClaim(t *testing.T, db *pg.DB, investorID, propertyID int64, amount float64) *repository.RentalClaimEntity {
	ctx := context.Background()
	claim := &repository.RentalClaimEntity{
		InvestorID: investorID,
		PropertyID: propertyID,
		Amount:     amount,
		Status:     "pending",
		CreatedAt:  time.Now(),
	}
	err := db.Write(ctx).Create(claim).Error
	require.NoError(t, err)
	return claim
}

func WaitForCondition(t *testing.T, timeout time.Duration, condition func() bool) bool {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if condition() {
			return true
		}
		time.Sleep(10 * time.Millisecond)
	}
	return false
}

func AssertEventually(t *testing.T, timeout time.Duration, condition func() bool, msg string) {
	if !WaitForCondition(t, timeout, condition) {
		t.Fatal(msg)
	}
}

func ContextWithTimeout(timeout time.Duration) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), timeout)
}

var apiKeySeq atomic.Int64

func RandomAPIKey() string {
	return fmt.Sprintf("test-api-key-%d-%d", time.Now().UnixNano(), apiKeySeq.Add(1))
}

func Ptr[T any](v T) *T {
	return &v
}
