package config

type WorkerKeyStruct struct {
	ScheduleRefreshQueue string
}

var WorkerKey = &WorkerKeyStruct{
	ScheduleRefreshQueue: "schedule_refresh_queue",
}
