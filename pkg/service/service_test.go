package service

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"stockview/pkg/cache"
	"stockview/pkg/repository"
	"stockview/pkg/series"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const header = "trade_time,open,high,low,close,vol,amount\n"

type fixture struct {
	dataDir string
	svc     *Service
	fetcher *stubFetcher
}

// stubFetcher 可编程的远程拉取桩
type stubFetcher struct {
	result series.Series
	err    error
	calls  int
}

func (f *stubFetcher) FetchKline(ctx context.Context, secid string, beg, end time.Time) (series.Series, error) {
	f.calls++
	return f.result, f.err
}

type stubClock struct{ now time.Time }

func (c stubClock) Now() time.Time { return c.now }

func newFixture(t *testing.T) *fixture {
	t.Helper()
	root := t.TempDir()
	dataDir := filepath.Join(root, "stock")

	fetcher := &stubFetcher{err: errors.New("remote disabled")}
	mgr := cache.NewManager(
		cache.ManagerConfig{
			CacheDir: filepath.Join(root, "cache"),
			Windows:  []cache.Window{{Name: "latest", LastDays: 30}},
		},
		cache.NewFetchLog(filepath.Join(root, "cache", "fetch_log.json")),
		fetcher,
		stubClock{now: time.Date(2022, 6, 1, 10, 0, 0, 0, time.Local)},
	)

	return &fixture{
		dataDir: dataDir,
		svc:     New(repository.New(dataDir), mgr),
		fetcher: fetcher,
	}
}

func (f *fixture) writePartition(t *testing.T, bucket, filename, rows string) {
	t.Helper()
	dir := filepath.Join(f.dataDir, bucket)
	require.NoError(t, os.MkdirAll(dir, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, filename), []byte(header+rows), 0644))
}

func dayBar(date string, close float64) series.Bar {
	ts, _ := time.ParseInLocation("2006-01-02", date, time.Local)
	return series.Bar{Time: ts, Open: close, High: close, Low: close, Close: close, Volume: 1, Amount: 1}
}

// 本地多年分区合并为一条升序序列
func TestQuery_LocalMerge(t *testing.T) {
	f := newFixture(t)
	f.writePartition(t, "2021", "000001.SZ.csv", "2021-12-30,1,1,1,1,1,1\n2021-12-31,2,2,2,2,2,2\n")
	f.writePartition(t, "2022", "000001.SZ.csv", "2022-01-04,3,3,3,3,3,3\n")

	res, err := f.svc.Query(context.Background(), Request{Code: "000001.SZ", Period: series.PeriodNative})
	require.NoError(t, err)

	assert.Equal(t, []string{"2021", "2022"}, res.Years)
	require.Len(t, res.Bars, 3)
	assert.True(t, res.Bars[0].Time.Before(res.Bars[2].Time))
}

// 本地批次与远程批次重叠同一天时本地胜出
func TestQuery_LocalWinsOverRemote(t *testing.T) {
	f := newFixture(t)
	f.writePartition(t, "2022", "000001.SZ.csv", "2022-01-04,16,16,16,16,16,16\n")
	f.fetcher.err = nil
	f.fetcher.result = series.Series{dayBar("2022-01-04", 99), dayBar("2022-01-05", 17)}

	res, err := f.svc.Query(context.Background(), Request{
		Code: "000001.SZ", Period: series.PeriodNative, RemoteData: true,
	})
	require.NoError(t, err)

	require.Len(t, res.Bars, 2)
	assert.Equal(t, 16.0, res.Bars[0].Close, "local close wins on the overlapping date")
	assert.Equal(t, 17.0, res.Bars[1].Close)
}

// 远程失败但本地有数据时降级成功
func TestQuery_RemoteFailureDegradesToLocal(t *testing.T) {
	f := newFixture(t)
	f.writePartition(t, "2022", "000001.SZ.csv", "2022-01-04,1,1,1,1,1,1\n")

	res, err := f.svc.Query(context.Background(), Request{
		Code: "000001.SZ", Period: series.PeriodNative, RemoteData: true,
	})
	require.NoError(t, err)
	assert.Len(t, res.Bars, 1)
}

// 远程失败且本地无数据时请求失败
func TestQuery_RemoteFailureNoLocal(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Query(context.Background(), Request{
		Code: "000001.SZ", Period: series.PeriodNative, RemoteData: true,
	})
	assert.Error(t, err)
}

// 未知标的且未启用远程时返回 NoDataError
func TestQuery_NoData(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Query(context.Background(), Request{Code: "999999.SZ", Period: series.PeriodNative})
	var noData *NoDataError
	require.ErrorAs(t, err, &noData)
	assert.Equal(t, "999999.SZ", noData.Code)
}

// 分区解析失败作为错误传播，不静默跳过
func TestQuery_MalformedPartition(t *testing.T) {
	f := newFixture(t)
	f.writePartition(t, "2022", "000001.SZ.csv", "broken\n")

	_, err := f.svc.Query(context.Background(), Request{Code: "000001.SZ", Period: series.PeriodNative})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "000001.SZ.csv")
}

// 年份过滤只合并指定年份
func TestQuery_YearFilter(t *testing.T) {
	f := newFixture(t)
	f.writePartition(t, "2021", "000001.SZ.csv", "2021-12-30,1,1,1,1,1,1\n")
	f.writePartition(t, "2022", "000001.SZ.csv", "2022-01-04,2,2,2,2,2,2\n")

	res, err := f.svc.Query(context.Background(), Request{
		Code: "000001.SZ", Year: 2021, Period: series.PeriodNative,
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"2021"}, res.Years)
	assert.Len(t, res.Bars, 1)
}

// 补齐窗口失败不影响请求成功
func TestQuery_FillMissingDataBestEffort(t *testing.T) {
	f := newFixture(t)
	f.writePartition(t, "2022", "000001.SZ.csv", "2022-01-04,1,1,1,1,1,1\n")
	f.fetcher.err = errors.New("window down")

	res, err := f.svc.Query(context.Background(), Request{
		Code: "000001.SZ", Period: series.PeriodNative, FillMissingData: true,
	})
	require.NoError(t, err)
	assert.Len(t, res.Bars, 1)

	// 窗口恢复后数据并入结果，本地仍然优先
	f.fetcher.err = nil
	f.fetcher.result = series.Series{dayBar("2022-05-20", 5)}
	res, err = f.svc.Query(context.Background(), Request{
		Code: "000001.SZ", Period: series.PeriodNative, FillMissingData: true,
	})
	require.NoError(t, err)
	assert.Len(t, res.Bars, 2)
}

// 周聚合贯通整个管道
func TestQuery_WeekAggregation(t *testing.T) {
	f := newFixture(t)
	f.writePartition(t, "2022", "000001.SZ.csv",
		"2022-01-04,10,12,9,11,100,1000\n2022-01-05,11,15,10,14,200,2000\n2022-01-10,14,14,8,9,300,3000\n")

	res, err := f.svc.Query(context.Background(), Request{Code: "000001.SZ", Period: series.PeriodWeek})
	require.NoError(t, err)

	require.Len(t, res.Bars, 2)
	assert.Equal(t, 10.0, res.Bars[0].Open)
	assert.Equal(t, 15.0, res.Bars[0].High)
	assert.Equal(t, 14.0, res.Bars[0].Close)
	assert.Equal(t, 300.0, res.Bars[0].Volume)
}
