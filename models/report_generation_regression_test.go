package models_test

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"regexp"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/kilometri/kilometri_backend/config"
	"github.com/kilometri/kilometri_backend/models"
	"github.com/kilometri/kilometri_backend/utils"
	"github.com/shopspring/decimal"
)

// Regression: generating a report must freeze the period totals, and a second
// generate for the same period must surface the surviving report instead of
// creating a duplicate. Editing trips afterwards must not touch the snapshot.
func TestGenerateMonthlyReport_SnapshotSemantics(t *testing.T) {
	if strings.TrimSpace(os.Getenv("INTEGRATION_TESTS")) == "" {
		t.Skip("set INTEGRATION_TESTS=1 to run integration tests (requires docker)")
	}

	ctx := context.Background()

	redisName, redisPort := startRedisContainer(t)
	t.Cleanup(func() { _ = dockerRmForce(redisName) })

	mysqlName, mysqlPort := startMySQLContainer(t)
	t.Cleanup(func() { _ = dockerRmForce(mysqlName) })

	// Wire env for config.Connect* helpers.
	t.Setenv("REDIS_ADDRESS", fmt.Sprintf("127.0.0.1:%s", redisPort))
	t.Setenv("DB_USER", "root")
	t.Setenv("DB_PASSWORD", "testpw")
	t.Setenv("DB_HOST", "127.0.0.1")
	t.Setenv("DB_PORT", mysqlPort)
	t.Setenv("DB_NAME", "kilometri_test")

	config.ConnectDatabaseWithRetry()
	config.ConnectRedisWithRetry()
	models.MigrateTable()

	user, err := models.CreateUser(ctx, &models.NewUser{
		Username: "reporter",
		Name:     "Report Tester",
		Password: "reporter-password",
	})
	if err != nil {
		t.Fatalf("CreateUser: %v", err)
	}

	ctx = utils.SetUserIdInContext(ctx, user.ID)
	ctx = utils.SetUsernameInContext(ctx, user.Username)

	// Pick a closed period well inside the retention window. Anchoring on
	// the first of the month avoids AddDate normalization on day 29..31.
	now := time.Now().UTC()
	firstOfMonth := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	period := firstOfMonth.AddDate(0, -1, 0)
	year, month := period.Year(), int(period.Month())

	manual := true
	mkTrip := func(date time.Time, distance string) *models.Trip {
		trip, err := models.CreateTrip(ctx, user.ID, &models.NewTrip{
			Date:         date,
			StartAddress: "Office",
			EndAddress:   "Site",
			DistanceKm:   decimal.RequireFromString(distance),
			Purpose:      "Site visit",
			IsManual:     &manual,
		})
		if err != nil {
			t.Fatalf("CreateTrip: %v", err)
		}
		return trip
	}
	mkTrip(period.AddDate(0, 0, 2), "100.00")
	edited := mkTrip(period.AddDate(0, 0, 9), "65.50")

	report, trips, err := models.GenerateMonthlyReport(ctx, user.ID, year, month)
	if err != nil {
		t.Fatalf("GenerateMonthlyReport: %v", err)
	}
	if got := report.TotalKm.StringFixed(2); got != "165.50" {
		t.Fatalf("TotalKm: got %s", got)
	}
	if report.TripCount != 2 || len(trips) != 2 {
		t.Fatalf("TripCount: got %d (%d trips)", report.TripCount, len(trips))
	}
	if report.IsRendered() {
		t.Fatalf("fresh report must not carry rendered files")
	}

	// Second generate for the same period: conflict, surviving report returned.
	dup, _, err := models.GenerateMonthlyReport(ctx, user.ID, year, month)
	if !errors.Is(err, models.ErrReportExists) {
		t.Fatalf("expected ErrReportExists, got %v", err)
	}
	if dup == nil || dup.ID != report.ID {
		t.Fatalf("conflict must return the surviving report")
	}

	// Editing a trip afterwards must not change the snapshot.
	if _, err := models.UpdateTrip(ctx, user.ID, edited.ID, &models.NewTrip{
		Date:         edited.Date,
		StartAddress: edited.StartAddress,
		EndAddress:   edited.EndAddress,
		DistanceKm:   decimal.RequireFromString("999.99"),
		Purpose:      edited.Purpose,
		IsManual:     edited.IsManual,
	}); err != nil {
		t.Fatalf("UpdateTrip: %v", err)
	}
	frozen, err := models.GetReport(ctx, user.ID, report.ID)
	if err != nil {
		t.Fatalf("GetReport: %v", err)
	}
	if got := frozen.TotalKm.StringFixed(2); got != "165.50" {
		t.Fatalf("snapshot changed after trip edit: %s", got)
	}

	// An empty period is a client error, not an empty report.
	empty := period.AddDate(0, -1, 0)
	if _, _, err := models.GenerateMonthlyReport(ctx, user.ID, empty.Year(), int(empty.Month())); !errors.Is(err, models.ErrNoTrips) {
		t.Fatalf("expected ErrNoTrips, got %v", err)
	}

	// Delete + regenerate picks up the edited trips.
	if err := models.DeleteReport(ctx, user.ID, report.ID); err != nil {
		t.Fatalf("DeleteReport: %v", err)
	}
	regen, _, err := models.GenerateMonthlyReport(ctx, user.ID, year, month)
	if err != nil {
		t.Fatalf("regenerate: %v", err)
	}
	if got := regen.TotalKm.StringFixed(2); got != "1099.99" {
		t.Fatalf("regenerated TotalKm: got %s", got)
	}

	// Concurrent generate calls for one period: exactly one report row is
	// created, the loser gets the conflict error carrying the winner's row.
	racePeriod := firstOfMonth.AddDate(0, -3, 0)
	mkTrip(racePeriod.AddDate(0, 0, 4), "42.00")

	var (
		wg      sync.WaitGroup
		raced   [2]*models.MonthlyReport
		raceErr [2]error
	)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			raced[i], _, raceErr[i] = models.GenerateMonthlyReport(ctx, user.ID, racePeriod.Year(), int(racePeriod.Month()))
		}(i)
	}
	wg.Wait()

	winners, losers := 0, 0
	var winnerID int
	for i := 0; i < 2; i++ {
		switch {
		case raceErr[i] == nil:
			winners++
			winnerID = raced[i].ID
		case errors.Is(raceErr[i], models.ErrReportExists):
			losers++
		default:
			t.Fatalf("concurrent generate %d: unexpected error %v", i, raceErr[i])
		}
	}
	if winners != 1 || losers != 1 {
		t.Fatalf("expected one winner and one loser, got %d/%d", winners, losers)
	}
	for i := 0; i < 2; i++ {
		if raced[i] == nil || raced[i].ID != winnerID {
			t.Fatalf("loser must receive the winner's report, got %+v", raced[i])
		}
	}
	var rows int64
	if err := config.GetDB().Model(&models.MonthlyReport{}).
		Where("user_id = ? AND year = ? AND month = ?", user.ID, racePeriod.Year(), int(racePeriod.Month())).
		Count(&rows).Error; err != nil {
		t.Fatalf("count reports: %v", err)
	}
	if rows != 1 {
		t.Fatalf("expected exactly one persisted report, got %d", rows)
	}

	// A stored hash that bcrypt cannot parse must reject the login rather
	// than fall through to a token.
	corrupted, err := models.CreateUser(ctx, &models.NewUser{
		Username: "corrupted",
		Name:     "Corrupted Hash",
		Password: "irrelevant-password",
	})
	if err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	if err := config.GetDB().Model(&models.User{}).
		Where("id = ?", corrupted.ID).
		Update("password", "not-a-bcrypt-hash").Error; err != nil {
		t.Fatalf("corrupt password hash: %v", err)
	}
	if _, err := models.Login(ctx, "corrupted", "irrelevant-password"); err == nil {
		t.Fatalf("login must fail for an unparseable stored hash")
	}
}

func startRedisContainer(t *testing.T) (containerName, hostPort string) {
	t.Helper()
	name := fmt.Sprintf("kilometri-test-redis-%d", time.Now().UnixNano())
	out, err := dockerRun(
		"run", "-d", "--name", name,
		"-p", "127.0.0.1:0:6379",
		"redis:7-alpine",
	)
	if err != nil {
		t.Fatalf("start redis container: %v\n%s", err, out)
	}
	port, err := dockerHostPort(name, "6379/tcp")
	if err != nil {
		t.Fatalf("redis docker port: %v", err)
	}
	// wait until ready
	deadline := time.Now().Add(60 * time.Second)
	for time.Now().Before(deadline) {
		_, err := dockerRun("exec", name, "redis-cli", "ping")
		if err == nil {
			return name, port
		}
		time.Sleep(250 * time.Millisecond)
	}
	t.Fatalf("redis did not become ready")
	return "", ""
}

func startMySQLContainer(t *testing.T) (containerName, hostPort string) {
	t.Helper()
	name := fmt.Sprintf("kilometri-test-mysql-%d", time.Now().UnixNano())
	out, err := dockerRun(
		"run", "-d", "--name", name,
		"-e", "MYSQL_ROOT_PASSWORD=testpw",
		"-e", "MYSQL_DATABASE=kilometri_test",
		"-p", "127.0.0.1:0:3306",
		"mysql:8.0",
		"--default-authentication-plugin=mysql_native_password",
	)
	if err != nil {
		t.Fatalf("start mysql container: %v\n%s", err, out)
	}
	port, err := dockerHostPort(name, "3306/tcp")
	if err != nil {
		t.Fatalf("mysql docker port: %v", err)
	}
	// wait until ready
	deadline := time.Now().Add(120 * time.Second)
	for time.Now().Before(deadline) {
		_, err := dockerRun("exec", name, "mysqladmin", "ping", "-h", "127.0.0.1", "-ptestpw", "--silent")
		if err == nil {
			return name, port
		}
		time.Sleep(500 * time.Millisecond)
	}
	t.Fatalf("mysql did not become ready")
	return "", ""
}

func dockerHostPort(container, portProto string) (string, error) {
	out, err := dockerRun("port", container, portProto)
	if err != nil {
		return "", fmt.Errorf("docker port: %w: %s", err, out)
	}
	// Example: "127.0.0.1:49154\n"
	re := regexp.MustCompile(`:(\d+)`)
	m := re.FindStringSubmatch(out)
	if len(m) != 2 {
		return "", fmt.Errorf("unexpected docker port output: %q", out)
	}
	return m[1], nil
}

func dockerRmForce(container string) error {
	if strings.TrimSpace(container) == "" {
		return nil
	}
	_, err := dockerRun("rm", "-f", container)
	return err
}

func dockerRun(args ...string) (string, error) {
	cmd := exec.Command("docker", args...)
	b, err := cmd.CombinedOutput()
	return string(b), err
}
