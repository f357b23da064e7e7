package timescaledb

const createExtensionSQL = `CREATE EXTENSION IF NOT EXISTS timescaledb;`

// season_annual is partitioned on the first day of each pixel's hydrological year
const createHypertableSQL = `SELECT create_hypertable('season_annual', 'time', if_not_exists => true, migrate_data => true);`

// There is no updating of views in PostgreSQL, so the run summary is dropped
// and re-created on every start
const dropRunSummaryViewSQL = `DROP VIEW IF EXISTS season_run_summary;`

const createRunSummaryViewSQL = `CREATE VIEW season_run_summary AS
SELECT
    run_id,
    status,
    count(*) AS pixels,
    count(*) FILTER (WHERE masked) AS masked,
    avg(mean_length) AS mean_length,
    avg(onset1) AS mean_onset1,
    min(computed_at) AS started,
    max(computed_at) AS finished
FROM season_pixels
WHERE in_study_area
GROUP BY run_id, status;`

const createValidYearsViewSQL = `CREATE OR REPLACE VIEW season_annual_valid AS
SELECT a.*, p.lon, p.lat
FROM season_annual a
JOIN season_pixels p ON p.run_id = a.run_id AND p.pixel = a.pixel
WHERE a.valid AND NOT p.masked;`
