// Package postgres implements the PostgreSQL persistence layer for the
// mentor vetting pipeline.
package postgres

// GetMigrations returns all embedded migrations.
func GetMigrations() []Migration {
	return []Migration{
		{
			Version: 1,
			Name:    "create_mentor_applications",
			UpSQL:   migration001Up,
			DownSQL: migration001Down,
		},
		{
			Version: 2,
			Name:    "create_questions",
			UpSQL:   migration002Up,
			DownSQL: migration002Down,
		},
		{
			Version: 3,
			Name:    "create_test_sessions",
			UpSQL:   migration003Up,
			DownSQL: migration003Down,
		},
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 001: CREATE MENTOR APPLICATIONS
// ══════════════════════════════════════════════════════════════════════════════

const migration001Up = `
-- Migration: Create mentor_applications table
-- Version: 001

CREATE TABLE IF NOT EXISTS mentor_applications (
    id UUID PRIMARY KEY,
    full_name VARCHAR(100) NOT NULL,
    email VARCHAR(256) NOT NULL,
    phone_number VARCHAR(30) NOT NULL DEFAULT '',
    specialization VARCHAR(50) NOT NULL,
    years_of_experience INTEGER NOT NULL DEFAULT 0,
    linkedin_url TEXT NOT NULL DEFAULT '',
    bio TEXT NOT NULL DEFAULT '',
    current_position VARCHAR(100) NOT NULL DEFAULT '',
    company VARCHAR(100) NOT NULL DEFAULT '',
    status VARCHAR(30) NOT NULL DEFAULT 'pending',
    test_attempts INTEGER NOT NULL DEFAULT 0,
    retry_allowed_at TIMESTAMP WITH TIME ZONE,
    final_score DOUBLE PRECISION,
    account_id VARCHAR(100) NOT NULL DEFAULT '',
    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),

    CONSTRAINT valid_application_status CHECK (status IN (
        'pending', 'test_sent', 'test_completed',
        'approved', 'rejected_retryable', 'rejected_terminal'
    )),
    CONSTRAINT valid_experience CHECK (years_of_experience >= 0 AND years_of_experience <= 50),
    CONSTRAINT valid_attempts CHECK (test_attempts >= 0),
    -- A retry window exists exactly while the rejection is retryable.
    CONSTRAINT retry_window_matches_status CHECK (
        (status = 'rejected_retryable') = (retry_allowed_at IS NOT NULL)
    )
);

-- At most one active (non-terminal) application per email. This partial
-- unique index is the authority for the duplicate-submission check; the
-- repository only translates its violation.
CREATE UNIQUE INDEX IF NOT EXISTS uq_applications_active_email
    ON mentor_applications(email)
    WHERE status NOT IN ('approved', 'rejected_terminal');

CREATE INDEX IF NOT EXISTS idx_applications_email ON mentor_applications(email);
CREATE INDEX IF NOT EXISTS idx_applications_status ON mentor_applications(status);
CREATE INDEX IF NOT EXISTS idx_applications_created_at ON mentor_applications(created_at DESC);
`

const migration001Down = `
DROP TABLE IF EXISTS mentor_applications;
`

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 002: CREATE QUESTIONS
// ══════════════════════════════════════════════════════════════════════════════

const migration002Up = `
-- Migration: Create questions table with a starter bank
-- Version: 002

CREATE TABLE IF NOT EXISTS questions (
    id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
    category VARCHAR(50) NOT NULL,
    text TEXT NOT NULL,
    option_a TEXT NOT NULL,
    option_b TEXT NOT NULL,
    option_c TEXT NOT NULL,
    option_d TEXT NOT NULL,
    correct_option CHAR(1) NOT NULL,
    difficulty VARCHAR(10) NOT NULL,
    explanation TEXT NOT NULL DEFAULT '',
    is_active BOOLEAN NOT NULL DEFAULT TRUE,
    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),

    CONSTRAINT valid_correct_option CHECK (correct_option IN ('A', 'B', 'C', 'D')),
    CONSTRAINT valid_difficulty CHECK (difficulty IN ('easy', 'medium', 'hard'))
);

CREATE INDEX IF NOT EXISTS idx_questions_category ON questions(category) WHERE is_active;
CREATE INDEX IF NOT EXISTS idx_questions_active ON questions(is_active);

-- Starter bank so a fresh deployment can issue tests before the admin team
-- curates its own questions. General items back-fill every specialization.
INSERT INTO questions (category, text, option_a, option_b, option_c, option_d, correct_option, difficulty, explanation) VALUES
('General', 'A mentee repeatedly cancels sessions at the last minute. What is the most constructive first step?', 'Drop the mentee immediately', 'Ask about the cancellations and agree on a scheduling norm', 'Report them to platform support', 'Shorten all future sessions to 15 minutes', 'B', 'easy', 'Address the pattern directly before escalating.'),
('General', 'What is the primary goal of the first mentoring session?', 'Solve the mentee''s hardest problem', 'Establish goals, expectations and ways of working', 'Review the mentee''s CV line by line', 'Assign homework', 'B', 'easy', ''),
('General', 'A mentee asks a question you cannot answer. What should you do?', 'Change the subject', 'Improvise a plausible answer', 'Say you do not know and follow up with a researched answer', 'End the session early', 'C', 'easy', ''),
('General', 'Which feedback style is generally most effective in mentoring?', 'Only positive feedback', 'Specific, actionable and timely feedback', 'Written feedback once a quarter', 'Public feedback in group settings', 'B', 'medium', ''),
('General', 'A mentee''s goal is vague ("get better at coding"). What is the best response?', 'Accept the goal as stated', 'Help them reframe it into specific, measurable milestones', 'Set the goal for them', 'Postpone goal-setting until later', 'B', 'medium', ''),
('General', 'How should a mentor handle a mentee who disagrees with their advice?', 'Insist until the mentee complies', 'Explore the mentee''s reasoning and present trade-offs', 'Withdraw from the relationship', 'Escalate to the platform', 'B', 'medium', ''),
('General', 'What distinguishes mentoring from managing?', 'Mentors set performance targets', 'Mentors guide growth without positional authority', 'Mentors conduct formal reviews', 'There is no difference', 'B', 'medium', ''),
('General', 'A mentee shares confidential employer information during a session. What should the mentor do?', 'Use it to give sharper advice', 'Remind the mentee of confidentiality boundaries and avoid acting on it', 'Share it with other mentees as a case study', 'Ignore the issue entirely', 'B', 'hard', ''),
('General', 'Two of your mentees are interviewing for the same role. How do you keep the relationship fair?', 'Coach only the stronger candidate', 'Disclose the conflict and keep sessions strictly separate', 'Cancel sessions with both', 'Compare their progress openly to motivate them', 'B', 'hard', ''),
('General', 'When is it appropriate to end a mentoring relationship?', 'Never', 'When goals are met or the relationship stops being productive', 'After exactly six months', 'Only if the mentee requests it', 'B', 'easy', ''),
('Software Engineering', 'What is the main benefit of a code review?', 'Slowing releases down', 'Catching defects early and spreading knowledge', 'Ranking developers', 'Replacing tests', 'B', 'easy', ''),
('Software Engineering', 'Which practice best supports refactoring with confidence?', 'Feature flags', 'A comprehensive automated test suite', 'Longer release cycles', 'Code freezes', 'B', 'medium', ''),
('Software Engineering', 'A junior engineer ships a bug to production. As their mentor, what do you emphasise first?', 'The cost of their mistake', 'A blameless analysis of how the process let the bug through', 'Writing an apology to the team', 'Moving them off the project', 'B', 'medium', ''),
('Software Engineering', 'What does the single responsibility principle state?', 'A function may have only one line', 'A module should have one reason to change', 'Each developer owns one file', 'Classes must not exceed 100 lines', 'B', 'medium', ''),
('Software Engineering', 'Which is the most reliable way to judge whether an abstraction is premature?', 'Count its lines of code', 'Check whether it has more than one real consumer', 'Ask the original author', 'Measure compile time', 'B', 'hard', ''),
('Web Development', 'What does CORS control?', 'Database sharding', 'Cross-origin access to HTTP resources', 'CSS rendering order', 'Server clustering', 'B', 'easy', ''),
('Web Development', 'Which HTTP status code indicates a resource was not found?', '200', '301', '404', '500', 'C', 'easy', ''),
('Web Development', 'What is the main purpose of an idempotency key on a POST endpoint?', 'Authentication', 'Safe retries without duplicate side effects', 'Response compression', 'Rate limiting', 'B', 'hard', ''),
('Data Science', 'What problem does train/test splitting address?', 'Slow training', 'Overfitting evaluation to the training data', 'Missing values', 'Class imbalance', 'B', 'easy', ''),
('Data Science', 'A model performs well in training but poorly in production. What is the most likely cause to investigate first?', 'Hardware differences', 'A shift between training data and live data', 'Programming language choice', 'Random seeds', 'B', 'medium', ''),
('DevOps', 'What is the goal of a blue-green deployment?', 'Halving infrastructure cost', 'Releasing with instant rollback by switching traffic between environments', 'Testing in production', 'Avoiding containers', 'B', 'medium', ''),
('DevOps', 'Which metric best reflects delivery performance?', 'Lines of code per day', 'Lead time from commit to production', 'Number of branches', 'Meeting count', 'B', 'medium', ''),
('Mobile Development', 'Why should mobile apps handle offline state explicitly?', 'App stores require it', 'Network connectivity is intermittent for real users', 'It reduces binary size', 'It improves battery life', 'B', 'easy', ''),
('Design', 'What is the purpose of a usability test?', 'Validating visual taste', 'Observing real users completing tasks to find friction', 'Approving the colour palette', 'Measuring server latency', 'B', 'easy', ''),
('Cybersecurity', 'What is the principle of least privilege?', 'Users get the minimum access needed for their role', 'All users share one account', 'Admins approve every action', 'Passwords rotate daily', 'A', 'easy', ''),
('Management', 'A project is slipping. What should a mentor advise the mentee-manager to do first?', 'Add more engineers immediately', 'Re-examine scope and communicate the new forecast early', 'Hide the slip until the deadline', 'Cancel the project', 'B', 'medium', ''),
('Marketing', 'What does A/B testing measure?', 'Server throughput', 'The causal effect of a change on a chosen metric', 'Brand sentiment', 'Employee satisfaction', 'B', 'easy', '');
`

const migration002Down = `
DROP TABLE IF EXISTS questions;
`

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 003: CREATE TEST SESSIONS
// ══════════════════════════════════════════════════════════════════════════════

const migration003Up = `
-- Migration: Create test_sessions table
-- Version: 003

CREATE TABLE IF NOT EXISTS test_sessions (
    id UUID PRIMARY KEY,
    application_id UUID NOT NULL REFERENCES mentor_applications(id) ON DELETE CASCADE,
    token CHAR(40) NOT NULL,
    status VARCHAR(20) NOT NULL DEFAULT 'pending',
    -- Full question snapshot taken at issuance; later bank edits never
    -- change an issued test.
    questions JSONB NOT NULL,
    time_limit_seconds BIGINT NOT NULL,
    issued_at TIMESTAMP WITH TIME ZONE NOT NULL,
    expires_at TIMESTAMP WITH TIME ZONE NOT NULL,
    started_at TIMESTAMP WITH TIME ZONE,
    completed_at TIMESTAMP WITH TIME ZONE,
    answers JSONB,
    correct_count INTEGER NOT NULL DEFAULT 0,
    score DOUBLE PRECISION NOT NULL DEFAULT 0,

    CONSTRAINT valid_session_status CHECK (status IN ('pending', 'in_progress', 'completed', 'expired')),
    CONSTRAINT valid_time_limit CHECK (time_limit_seconds > 0)
);

CREATE UNIQUE INDEX IF NOT EXISTS uq_sessions_token ON test_sessions(token);

-- At most one live session per application; replacement requires expiring
-- the old one first.
CREATE UNIQUE INDEX IF NOT EXISTS uq_sessions_active_application
    ON test_sessions(application_id)
    WHERE status IN ('pending', 'in_progress');

CREATE INDEX IF NOT EXISTS idx_sessions_application ON test_sessions(application_id);
CREATE INDEX IF NOT EXISTS idx_sessions_status_expires
    ON test_sessions(expires_at)
    WHERE status IN ('pending', 'in_progress');
`

const migration003Down = `
DROP TABLE IF EXISTS test_sessions;
`
