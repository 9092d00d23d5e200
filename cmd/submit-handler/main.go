// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


// Command submit-handler is the Lambda function invoked for new documents.
// It starts one extraction job per created object in the S3 notification.
package main

import (
	"context"
	"log"
	"log/slog"
	"os"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/poiesic/docroute"
	"github.com/poiesic/docroute/cloud"
	"github.com/poiesic/docroute/config"
)

func main() {
	var level slog.Level
	if err := level.UnmarshalText([]byte(os.Getenv("DOCROUTE_LOG_LEVEL"))); err != nil {
		level = slog.LevelInfo
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	ctx := context.Background()
	cfg, err := config.Load(os.Getenv("DOCROUTE_CONFIG"))
	if err != nil {
		log.Fatal(err)
	}
	svc, err := cloud.NewServices(ctx, cfg, logger)
	if err != nil {
		log.Fatal(err)
	}
	p, err := docroute.Open(cfg, docroute.InMemory(), docroute.WithServices(svc), docroute.WithLogger(logger))
	if err != nil {
		log.Fatal(err)
	}
	defer p.Close()

	lambda.Start(newHandler(p, logger).Handle)
}
