package postgresql

func migrations() map[int]string {
	return map[int]string{
		1: `
			-- Create journeys table
			CREATE TABLE journeys (
				id VARCHAR(64) PRIMARY KEY,
				account VARCHAR(255) NOT NULL,
				name VARCHAR(255) NOT NULL,
				description TEXT NOT NULL DEFAULT '',
				active BOOLEAN NOT NULL DEFAULT false,
				start VARCHAR(255) NOT NULL,
				states JSONB NOT NULL DEFAULT '{}',
				trigger JSONB NOT NULL,
				metadata JSONB,
				created_at TIMESTAMP WITH TIME ZONE NOT NULL,
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL
			);

			CREATE INDEX idx_journeys_account ON journeys(account);
			CREATE INDEX idx_journeys_created_at ON journeys(created_at);
		`,
		2: `
			-- Create journey_runs table
			CREATE TABLE journey_runs (
				id VARCHAR(64) PRIMARY KEY,
				journey_id VARCHAR(64) NOT NULL,
				account VARCHAR(255) NOT NULL DEFAULT '',
				contact VARCHAR(255) NOT NULL DEFAULT '',
				status VARCHAR(20) NOT NULL CHECK (status IN ('running', 'completed', 'failed')),
				results JSONB NOT NULL DEFAULT '{}',
				trigger_event JSONB,
				time_started TIMESTAMP WITH TIME ZONE NOT NULL,
				time_ended TIMESTAMP WITH TIME ZONE,
				created_at TIMESTAMP WITH TIME ZONE NOT NULL,
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL
			);

			CREATE INDEX idx_journey_runs_journey ON journey_runs(journey_id, time_started DESC);
			CREATE INDEX idx_journey_runs_status ON journey_runs(status);
		`,
	}
}
